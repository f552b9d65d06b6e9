package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elim-assembly/attendance-api/internal/memberid"
	"github.com/elim-assembly/attendance-api/internal/models"
	"github.com/elim-assembly/attendance-api/internal/service"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
	"github.com/elim-assembly/attendance-api/pkg/response"
)

// MemberHandler exposes member and dependant registration endpoints.
type MemberHandler struct {
	members *service.MemberService
}

// NewMemberHandler constructs MemberHandler.
func NewMemberHandler(members *service.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

// memberView decorates a person with the badge-printed identifier form.
type memberView struct {
	models.Person
	MembershipIDDisplay string `json:"membership_id_display,omitempty"`
}

func viewOf(person models.Person) memberView {
	view := memberView{Person: person}
	if person.MembershipID != nil {
		view.MembershipIDDisplay = memberid.FormatForDisplay(*person.MembershipID)
	}
	return view
}

// Register godoc
// @Summary Register a member with a generated membership identifier
// @Tags Members
// @Accept json
// @Produce json
// @Param payload body service.RegisterMemberRequest true "Member payload"
// @Success 201 {object} response.Envelope
// @Router /members [post]
func (h *MemberHandler) Register(c *gin.Context) {
	var req service.RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	person, err := h.members.RegisterMember(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, viewOf(*person))
}

// RegisterDependant godoc
// @Summary Register a dependant linked to a member
// @Tags Members
// @Accept json
// @Produce json
// @Param payload body service.RegisterDependantRequest true "Dependant payload"
// @Success 201 {object} response.Envelope
// @Router /members/dependants [post]
func (h *MemberHandler) RegisterDependant(c *gin.Context) {
	var req service.RegisterDependantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	person, err := h.members.RegisterDependant(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, viewOf(*person))
}

// Lookup godoc
// @Summary Resolve a membership identifier to a member
// @Tags Members
// @Produce json
// @Param id path string true "Membership identifier in any punctuation"
// @Success 200 {object} response.Envelope
// @Router /members/by-identifier/{id} [get]
func (h *MemberHandler) Lookup(c *gin.Context) {
	person, err := h.members.LookupByIdentifier(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, viewOf(*person), nil)
}

// Dependants godoc
// @Summary List a member's dependants
// @Tags Members
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Router /members/{id}/dependants [get]
func (h *MemberHandler) Dependants(c *gin.Context) {
	rows, err := h.members.Dependants(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// List godoc
// @Summary List persons
// @Tags Members
// @Produce json
// @Param kind query string false "member or dependant"
// @Param search query string false "Search by name or canonical identifier"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /members [get]
func (h *MemberHandler) List(c *gin.Context) {
	var filter models.PersonFilter
	if kind := c.Query("kind"); kind != "" {
		k := models.PersonKind(strings.ToLower(kind))
		filter.Kind = &k
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	rows, pagination, err := h.members.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}
