package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elim-assembly/attendance-api/internal/models"
	"github.com/elim-assembly/attendance-api/internal/service"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
	"github.com/elim-assembly/attendance-api/pkg/response"
)

// CheckInHandler exposes the admission endpoints.
type CheckInHandler struct {
	checkins *service.CheckInService
}

// NewCheckInHandler constructs CheckInHandler.
func NewCheckInHandler(checkins *service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins}
}

// CheckIn godoc
// @Summary Check in a person with optional dependants
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.CheckInRequest true "Check-in payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.checkins.CheckIn(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkCheckIn godoc
// @Summary Check in a batch of persons for one occurrence
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkCheckInRequest true "Bulk check-in payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/bulk-check-in [post]
func (h *CheckInHandler) BulkCheckIn(c *gin.Context) {
	var req service.BulkCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	// The full per-entry accounting always goes back to the operator;
	// partial failure is part of the contract, not an error state.
	result, err := h.checkins.BulkCheckIn(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param dateFrom query string false "Window start (YYYY-MM-DD)"
// @Param dateTo query string false "Window end (YYYY-MM-DD)"
// @Param serviceType query string false "Service type filter"
// @Param personId query string false "Person filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *CheckInHandler) List(c *gin.Context) {
	var filter models.AttendanceFilter
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
	filter.PersonID = c.Query("personId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	rows, pagination, err := h.checkins.ListAttendance(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, false
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
