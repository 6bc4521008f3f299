package controllers

import (
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestflow/internal/domain"
)

func postSMSWebhook(t *testing.T, c *WebhookController, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"From": {from}, "Body": {body}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	c.HandleSMS(rec, req)
	return rec
}

func TestWebhookHandleSMS(t *testing.T) {
	event := &domain.Event{Name: "Launch Party"}

	tests := []struct {
		name        string
		result      domain.RSVPResult
		err         error
		wantMessage string
		wantEmpty   bool
	}{
		{
			name:      "yes gets an empty reply, confirmation goes out separately",
			result:    domain.RSVPResult{Outcome: domain.RSVPAccepted, Event: event, Invitee: &domain.Invitee{Status: domain.StatusYes}},
			wantEmpty: true,
		},
		{
			name:        "no is acknowledged inline",
			result:      domain.RSVPResult{Outcome: domain.RSVPAccepted, Event: event, Invitee: &domain.Invitee{Status: domain.StatusNo}},
			wantMessage: "Thanks for letting us know you can't make it to Launch Party.",
		},
		{
			name:        "already answered",
			result:      domain.RSVPResult{Outcome: domain.RSVPAlreadyAnswered, Event: event},
			wantMessage: "You have already responded.",
		},
		{
			name:        "event full",
			result:      domain.RSVPResult{Outcome: domain.RSVPEventFull, Event: event},
			wantMessage: "Sorry, Launch Party is now at full capacity.",
		},
		{
			name:        "unparseable body",
			result:      domain.RSVPResult{Outcome: domain.RSVPInvalidResponse},
			wantMessage: "Please reply with 'EVENT_CODE YES' or 'EVENT_CODE NO'.",
		},
		{
			name:        "unknown event code",
			result:      domain.RSVPResult{Outcome: domain.RSVPInvalidLink},
			wantMessage: "Please reply with 'EVENT_CODE YES' or 'EVENT_CODE NO'.",
		},
		{
			name:        "storage failure still answers the provider",
			err:         errors.New("db down"),
			wantMessage: "Sorry, something went wrong. Please try again later.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRSVPService{phoneResult: tt.result, phoneErr: tt.err}
			c := NewWebhookController(testLogger, svc)

			rec := postSMSWebhook(t, c, "+15550001111", "LAUNCH YES")

			require.Equal(t, http.StatusOK, rec.Code, "the provider always gets a 200")
			assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			assert.Contains(t, body, "<?xml")
			var reply twimlResponse
			require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &reply))
			if tt.wantEmpty {
				assert.Empty(t, reply.Message)
			} else {
				assert.Contains(t, reply.Message, tt.wantMessage)
			}
			if tt.err == nil {
				assert.Equal(t, "+15550001111", svc.lastFrom)
				assert.Equal(t, "LAUNCH YES", svc.lastBody)
			}
		})
	}
}
