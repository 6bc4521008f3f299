package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"guestflow/internal/delivery/http/helpers"
	"guestflow/internal/domain"
)

type OperatorController struct {
	Logger   *slog.Logger
	Events   domain.EventRepository
	RSVP     domain.RSVPService
	Messages domain.MessageLogRepository
}

func NewOperatorController(
	logger *slog.Logger,
	events domain.EventRepository,
	rsvp domain.RSVPService,
	messages domain.MessageLogRepository,
) *OperatorController {
	return &OperatorController{
		Logger:   logger,
		Events:   events,
		RSVP:     rsvp,
		Messages: messages,
	}
}

// SetAutomationRequest is the body for POST /events/{eventID}/automation.
type SetAutomationRequest struct {
	Status string `json:"status"`
}

func (r SetAutomationRequest) Validate() []string {
	if r.Status != domain.AutomationActive && r.Status != domain.AutomationPaused {
		return []string{"status must be 'active' or 'paused'"}
	}
	return nil
}

// SetAutomation godoc
// @Summary Pause or resume invitation automation for an event
// @Tags operator
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body controllers.SetAutomationRequest true "Automation status"
// @Success 200 {object} helpers.APIResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{eventID}/automation [post]
func (c *OperatorController) SetAutomation(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	var req SetAutomationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Events.SetAutomationStatus(r.Context(), eventID, req.Status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.Error("failed to set automation status", "event_id", eventID, "error", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"automation_status": req.Status})
}

// OverrideRequest is the body for POST /events/{eventID}/invitees/{inviteeID}/override.
type OverrideRequest struct {
	Response string `json:"response"`
}

func (r OverrideRequest) Validate() []string {
	if r.Response == "" {
		return []string{"response is required"}
	}
	return nil
}

// Override godoc
// @Summary Force an invitee's response on behalf of the host
// @Description Moves the invitee to yes or no regardless of its current status. The capacity check still applies for yes.
// @Tags operator
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param inviteeID path string true "Invitee ID"
// @Param body body controllers.OverrideRequest true "Forced response"
// @Success 200 {object} helpers.APIResponse{data=domain.Invitee}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: event_full"
// @Router /events/{eventID}/invitees/{inviteeID}/override [post]
func (c *OperatorController) Override(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	inviteeID := r.PathValue("inviteeID")
	var req OverrideRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := c.RSVP.Override(r.Context(), eventID, inviteeID, req.Response)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidResponse):
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "response must be 'yes' or 'no'")
		case errors.Is(err, domain.ErrNotFound):
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event or invitee not found")
		case errors.Is(err, domain.ErrConflict):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "invitee is being updated concurrently, try again")
		default:
			c.Logger.Error("override failed", "event_id", eventID, "invitee_id", inviteeID, "error", err)
			helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
		}
		return
	}
	if result.Outcome == domain.RSVPEventFull {
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeEventFull, "event is at full capacity")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result.Invitee)
}

// Retry godoc
// @Summary Re-send the invitation for an errored invitee
// @Description Generates a fresh RSVP token and retries the send. Only valid for invitees in error status.
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param inviteeID path string true "Invitee ID"
// @Success 200 {object} helpers.APIResponse{data=domain.Invitee}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /events/{eventID}/invitees/{inviteeID}/retry [post]
func (c *OperatorController) Retry(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	inviteeID := r.PathValue("inviteeID")

	invitee, err := c.RSVP.Retry(r.Context(), eventID, inviteeID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event or invitee not found")
		case errors.Is(err, domain.ErrIllegalTransition):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "invitee is not in error status")
		case errors.Is(err, domain.ErrCapacityExceeded):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeEventFull, "event is at full capacity")
		case errors.Is(err, domain.ErrConflict):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "invitee is being updated concurrently, try again")
		default:
			c.Logger.Error("retry failed", "event_id", eventID, "invitee_id", inviteeID, "error", err)
			helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
		}
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, invitee)
}

// MessageLogPage is the payload for GET /events/{eventID}/messages.
// swagger:model MessageLogPage
type MessageLogPage struct {
	Entries    []*domain.MessageLogEntry `json:"entries"`
	Pagination helpers.PaginationMeta    `json:"pagination"`
}

// ListMessages godoc
// @Summary List the message log for an event
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} helpers.APIResponse{data=controllers.MessageLogPage}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /events/{eventID}/messages [get]
func (c *OperatorController) ListMessages(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	params := helpers.ParsePagination(r)

	entries, total, err := c.Messages.ListByEventID(r.Context(), eventID, params.PageSize, params.Offset())
	if err != nil {
		c.Logger.Error("failed to list message log", "event_id", eventID, "error", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, MessageLogPage{
		Entries:    entries,
		Pagination: helpers.NewPaginationMeta(params.Page, params.PageSize, total),
	})
}
