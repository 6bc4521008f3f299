package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"guestflow/internal/delivery/http/controllers"
	"guestflow/internal/delivery/http/middleware"
	"guestflow/internal/domain"
)

type RouterConfig struct {
	RSVP     *controllers.RSVPController
	Webhook  *controllers.WebhookController
	Operator *controllers.OperatorController
	Verifier domain.TokenVerifier
}

// NewRouter wires all HTTP routes. RSVP link and webhook routes are
// public; operator routes require a bearer token.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /rsvp/{token}", cfg.RSVP.Show)
	mux.HandleFunc("POST /rsvp/{token}", cfg.RSVP.Submit)

	mux.HandleFunc("POST /webhooks/sms", cfg.Webhook.HandleSMS)

	auth := middleware.RequireAuth(cfg.Verifier)
	mux.HandleFunc("POST /events/{eventID}/automation", auth(cfg.Operator.SetAutomation))
	mux.HandleFunc("POST /events/{eventID}/invitees/{inviteeID}/override", auth(cfg.Operator.Override))
	mux.HandleFunc("POST /events/{eventID}/invitees/{inviteeID}/retry", auth(cfg.Operator.Retry))
	mux.HandleFunc("GET /events/{eventID}/messages", auth(cfg.Operator.ListMessages))

	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
