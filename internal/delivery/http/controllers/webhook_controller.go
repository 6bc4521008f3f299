package controllers

import (
	"encoding/xml"
	"log/slog"
	"net/http"

	"guestflow/internal/domain"
)

type WebhookController struct {
	Logger  *slog.Logger
	Service domain.RSVPService
}

func NewWebhookController(logger *slog.Logger, svc domain.RSVPService) *WebhookController {
	return &WebhookController{
		Logger:  logger,
		Service: svc,
	}
}

// twimlResponse is the minimal TwiML document the provider expects back.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// HandleSMS godoc
// @Summary Inbound SMS webhook
// @Description Parses "<eventCode> <YES|NO>" from the message body and records the response. Replies with a TwiML document.
// @Tags webhooks
// @Accept x-www-form-urlencoded
// @Produce xml
// @Param From formData string true "Sender phone number"
// @Param Body formData string true "Message body"
// @Success 200 {string} string "TwiML response"
// @Router /webhooks/sms [post]
func (c *WebhookController) HandleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.writeTwiML(w, "Sorry, we couldn't process your response.")
		return
	}
	fromPhone := r.PostFormValue("From")
	body := r.PostFormValue("Body")

	result, err := c.Service.SubmitByPhone(r.Context(), fromPhone, body)
	if err != nil {
		c.Logger.Error("webhook rsvp failed", "from", fromPhone, "error", err)
		c.writeTwiML(w, "Sorry, something went wrong. Please try again later.")
		return
	}

	switch result.Outcome {
	case domain.RSVPAccepted:
		// A yes gets its confirmation SMS from the gateway; a no is
		// acknowledged inline.
		if result.Invitee != nil && result.Invitee.Status == domain.StatusNo {
			name := ""
			if result.Event != nil {
				name = result.Event.Name
			}
			c.writeTwiML(w, "Thanks for letting us know you can't make it to "+name+".")
			return
		}
		c.writeTwiML(w, "")
	case domain.RSVPAlreadyAnswered:
		c.writeTwiML(w, "You have already responded.")
	case domain.RSVPEventFull:
		name := ""
		if result.Event != nil {
			name = result.Event.Name
		}
		c.writeTwiML(w, "Sorry, "+name+" is now at full capacity.")
	default:
		c.writeTwiML(w, "Sorry, we couldn't process your response. Please reply with 'EVENT_CODE YES' or 'EVENT_CODE NO'.")
	}
}

func (c *WebhookController) writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}
