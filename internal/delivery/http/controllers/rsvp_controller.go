package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"guestflow/internal/delivery/http/helpers"
	"guestflow/internal/domain"
)

type RSVPController struct {
	Logger  *slog.Logger
	Service domain.RSVPService
}

func NewRSVPController(logger *slog.Logger, svc domain.RSVPService) *RSVPController {
	return &RSVPController{
		Logger:  logger,
		Service: svc,
	}
}

// InvitationView is the public projection of an invitation behind a token.
// swagger:model InvitationView
type InvitationView struct {
	EventName            string     `json:"event_name"`
	EventDate            *time.Time `json:"event_date,omitempty"`
	EventLocation        *string    `json:"event_location,omitempty"`
	GuestName            string     `json:"guest_name"`
	Status               string     `json:"status"`
	AllowRSVPAfterExpiry bool       `json:"allow_rsvp_after_expiry"`
}

// SubmitRSVPRequest is the body for POST /rsvp/{token}.
type SubmitRSVPRequest struct {
	Response string `json:"response"`
}

func (r SubmitRSVPRequest) Validate() []string {
	if r.Response == "" {
		return []string{"response is required"}
	}
	return nil
}

// SubmitRSVPResponse is the success payload for POST /rsvp/{token}.
// swagger:model SubmitRSVPResponse
type SubmitRSVPResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// Show godoc
// @Summary Resolve an invitation link
// @Description Returns the event and guest behind an RSVP token.
// @Tags rsvp
// @Produce json
// @Param token path string true "RSVP token"
// @Success 200 {object} helpers.APIResponse{data=controllers.InvitationView}
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rsvp/{token} [get]
func (c *RSVPController) Show(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	event, invitee, err := c.Service.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "This invitation link is invalid.")
			return
		}
		c.Logger.Error("failed to resolve rsvp token", "error", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, InvitationView{
		EventName:            event.Name,
		EventDate:            event.Date,
		EventLocation:        event.Location,
		GuestName:            invitee.Name,
		Status:               string(invitee.Status),
		AllowRSVPAfterExpiry: event.AllowRSVPAfterExpiry,
	})
}

// Submit godoc
// @Summary Submit an RSVP response
// @Description Records a yes/no answer for the invitation behind the token.
// @Tags rsvp
// @Accept json
// @Produce json
// @Param token path string true "RSVP token"
// @Param body body controllers.SubmitRSVPRequest true "Response"
// @Success 200 {object} helpers.APIResponse{data=controllers.SubmitRSVPResponse}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: event_full"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /rsvp/{token} [post]
func (c *RSVPController) Submit(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	var req SubmitRSVPRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := c.Service.Submit(r.Context(), token, req.Response)
	if err != nil {
		c.Logger.Error("rsvp submit failed", "error", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
		return
	}

	switch result.Outcome {
	case domain.RSVPAccepted:
		msg := "Thank you! Your response has been recorded."
		if result.Event != nil {
			msg = "Thank you! Your response for " + result.Event.Name + " has been recorded."
		}
		helpers.WriteJSONSuccess(w, http.StatusOK, SubmitRSVPResponse{Outcome: string(result.Outcome), Message: msg})
	case domain.RSVPAlreadyAnswered:
		helpers.WriteJSONSuccess(w, http.StatusOK, SubmitRSVPResponse{Outcome: string(result.Outcome), Message: "You have already responded."})
	case domain.RSVPEventFull:
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeEventFull, "Sorry, this event is now at full capacity.")
	case domain.RSVPInvalidLink:
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "This invitation link is invalid.")
	case domain.RSVPInvalidResponse:
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "Invalid response provided.")
	default:
		c.Logger.Error("unexpected rsvp outcome", "outcome", result.Outcome)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "something went wrong")
	}
}
