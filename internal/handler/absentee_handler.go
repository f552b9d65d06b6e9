package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elim-assembly/attendance-api/internal/models"
	"github.com/elim-assembly/attendance-api/internal/service"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
	"github.com/elim-assembly/attendance-api/pkg/response"
)

// AbsenteeHandler exposes the follow-up workflow endpoints.
type AbsenteeHandler struct {
	absentees *service.AbsenteeService
}

// NewAbsenteeHandler constructs AbsenteeHandler.
func NewAbsenteeHandler(absentees *service.AbsenteeService) *AbsenteeHandler {
	return &AbsenteeHandler{absentees: absentees}
}

// MarkAbsent godoc
// @Summary Mark a person absent for a service occurrence
// @Tags Absentees
// @Accept json
// @Produce json
// @Param payload body service.MarkAbsentRequest true "Absentee payload"
// @Success 200 {object} response.Envelope
// @Router /absentees [post]
func (h *AbsenteeHandler) MarkAbsent(c *gin.Context) {
	var req service.MarkAbsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.absentees.MarkAbsent(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Dispatch godoc
// @Summary Dispatch follow-up notifications to selected absentees
// @Tags Absentees
// @Accept json
// @Produce json
// @Param payload body service.DispatchRequest true "Dispatch payload"
// @Success 200 {object} response.Envelope
// @Router /absentees/notifications [post]
func (h *AbsenteeHandler) Dispatch(c *gin.Context) {
	var req service.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.absentees.DispatchNotifications(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CompleteFollowUp godoc
// @Summary Close the follow-up loop for one absentee record
// @Tags Absentees
// @Produce json
// @Param id path string true "Absentee record ID"
// @Success 204
// @Router /absentees/{id}/follow-up [post]
func (h *AbsenteeHandler) CompleteFollowUp(c *gin.Context) {
	if err := h.absentees.CompleteFollowUp(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List absentee records
// @Tags Absentees
// @Produce json
// @Param dateFrom query string false "Window start (YYYY-MM-DD)"
// @Param dateTo query string false "Window end (YYYY-MM-DD)"
// @Param serviceType query string false "Service type filter"
// @Param pending query bool false "Only open follow-ups"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /absentees [get]
func (h *AbsenteeHandler) List(c *gin.Context) {
	var filter models.AbsenteeFilter
	if from, ok := parseDateQuery(c, "dateFrom"); ok {
		filter.DateFrom = from
	}
	if to, ok := parseDateQuery(c, "dateTo"); ok {
		filter.DateTo = to
	}
	if st := c.Query("serviceType"); st != "" {
		t := models.ServiceType(st)
		filter.ServiceType = &t
	}
	filter.PendingOnly = c.Query("pending") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	rows, pagination, err := h.absentees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}
