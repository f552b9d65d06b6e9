package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elim-assembly/attendance-api/internal/models"
	"github.com/elim-assembly/attendance-api/internal/service"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
	"github.com/elim-assembly/attendance-api/pkg/response"
)

// StatsHandler exposes the aggregation endpoints.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func windowFromQuery(c *gin.Context) (models.DateWindow, *models.ServiceType, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return models.DateWindow{}, nil, appErrors.Clone(appErrors.ErrValidation, "from is required as YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return models.DateWindow{}, nil, appErrors.Clone(appErrors.ErrValidation, "to is required as YYYY-MM-DD")
	}
	var serviceType *models.ServiceType
	if st := c.Query("serviceType"); st != "" {
		t := models.ServiceType(st)
		serviceType = &t
	}
	return models.DateWindow{From: from, To: to}, serviceType, nil
}

// Aggregate godoc
// @Summary Aggregate attendance over a date window
// @Tags Statistics
// @Produce json
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Param serviceType query string false "Service type filter"
// @Success 200 {object} response.Envelope
// @Router /stats/attendance [get]
func (h *StatsHandler) Aggregate(c *gin.Context) {
	window, serviceType, err := windowFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.stats.Aggregate(c.Request.Context(), window, serviceType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportPDF godoc
// @Summary Download the aggregated stats as a PDF report
// @Tags Statistics
// @Produce application/pdf
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Param serviceType query string false "Service type filter"
// @Success 200 {file} binary
// @Router /stats/attendance/export [get]
func (h *StatsHandler) ExportPDF(c *gin.Context) {
	window, serviceType, err := windowFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.stats.ExportPDF(c.Request.Context(), window, serviceType)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := "attendance-" + window.From.Format("20060102") + "-" + window.To.Format("20060102") + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
