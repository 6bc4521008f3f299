package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestflow/internal/delivery/http/helpers"
	"guestflow/internal/domain"
)

// fakeEventRepo implements domain.EventRepository for handler tests.
type fakeEventRepo struct {
	setStatusErr error
	lastEventID  string
	lastStatus   string
}

func (f *fakeEventRepo) GetByID(context.Context, string) (*domain.Event, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) GetByEventCode(context.Context, string) (*domain.Event, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListAutomated(context.Context) ([]*domain.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) SetAutomationStatus(_ context.Context, id, status string) error {
	f.lastEventID, f.lastStatus = id, status
	return f.setStatusErr
}

// fakeMessageLogRepo implements domain.MessageLogRepository for handler tests.
type fakeMessageLogRepo struct {
	entries    []*domain.MessageLogEntry
	total      int
	listErr    error
	lastLimit  int
	lastOffset int
}

func (f *fakeMessageLogRepo) Append(context.Context, *domain.MessageLogEntry) error { return nil }

func (f *fakeMessageLogRepo) CountSince(context.Context, time.Time, domain.MessageLogFilter) (int, error) {
	return 0, nil
}

func (f *fakeMessageLogRepo) ListByEventID(_ context.Context, _ string, limit, offset int) ([]*domain.MessageLogEntry, int, error) {
	f.lastLimit, f.lastOffset = limit, offset
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.entries, f.total, nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, target, body string, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(http.MethodPost, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestOperatorSetAutomation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		repoErr    error
		wantStatus int
		wantCode   string
	}{
		{name: "pause", body: `{"status":"paused"}`, wantStatus: http.StatusOK},
		{name: "resume", body: `{"status":"active"}`, wantStatus: http.StatusOK},
		{name: "bad status", body: `{"status":"stopped"}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "unknown event", body: `{"status":"paused"}`, repoErr: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &fakeEventRepo{setStatusErr: tt.repoErr}
			c := NewOperatorController(testLogger, events, &fakeRSVPService{}, &fakeMessageLogRepo{})

			rec := postJSON(t, c.SetAutomation, "/events/ev-1/automation", tt.body,
				map[string]string{"eventID": "ev-1"})

			require.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			} else {
				assert.Equal(t, "ev-1", events.lastEventID)
			}
		})
	}
}

func TestOperatorOverride(t *testing.T) {
	invitee := &domain.Invitee{ID: "inv-1", EventID: "ev-1", Status: domain.StatusYes}

	tests := []struct {
		name       string
		body       string
		result     domain.RSVPResult
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "forced yes",
			body:       `{"response":"yes"}`,
			result:     domain.RSVPResult{Outcome: domain.RSVPAccepted, Invitee: invitee},
			wantStatus: http.StatusOK,
		},
		{
			name:       "event full",
			body:       `{"response":"yes"}`,
			result:     domain.RSVPResult{Outcome: domain.RSVPEventFull, Invitee: invitee},
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeEventFull,
		},
		{
			name:       "invalid answer",
			body:       `{"response":"maybe"}`,
			err:        domain.ErrInvalidResponse,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "unknown invitee",
			body:       `{"response":"yes"}`,
			err:        domain.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   helpers.ErrCodeNotFound,
		},
		{
			name:       "persistent race",
			body:       `{"response":"yes"}`,
			err:        domain.ErrConflict,
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRSVPService{overrideResult: tt.result, overrideErr: tt.err}
			c := NewOperatorController(testLogger, &fakeEventRepo{}, svc, &fakeMessageLogRepo{})

			rec := postJSON(t, c.Override, "/events/ev-1/invitees/inv-1/override", tt.body,
				map[string]string{"eventID": "ev-1", "inviteeID": "inv-1"})

			require.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			} else {
				require.Nil(t, resp.Error)
			}
		})
	}
}

func TestOperatorRetry(t *testing.T) {
	tests := []struct {
		name       string
		invitee    *domain.Invitee
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "retried",
			invitee:    &domain.Invitee{ID: "inv-1", Status: domain.StatusInvited},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not in error status",
			err:        domain.ErrIllegalTransition,
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeConflict,
		},
		{
			name:       "unknown invitee",
			err:        domain.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   helpers.ErrCodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRSVPService{retryInvitee: tt.invitee, retryErr: tt.err}
			c := NewOperatorController(testLogger, &fakeEventRepo{}, svc, &fakeMessageLogRepo{})

			rec := postJSON(t, c.Retry, "/events/ev-1/invitees/inv-1/retry", "",
				map[string]string{"eventID": "ev-1", "inviteeID": "inv-1"})

			require.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestOperatorListMessages(t *testing.T) {
	eventID := "ev-1"
	log := &fakeMessageLogRepo{
		entries: []*domain.MessageLogEntry{
			{ID: "log-1", TenantID: "t1", EventID: &eventID, Phone: "+15550001111", Outcome: domain.OutcomeSent},
		},
		total: 41,
	}
	c := NewOperatorController(testLogger, &fakeEventRepo{}, &fakeRSVPService{}, log)

	req := httptest.NewRequest(http.MethodGet, "/events/ev-1/messages?page=2&page_size=20", nil)
	req.SetPathValue("eventID", "ev-1")
	rec := httptest.NewRecorder()
	c.ListMessages(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, log.lastLimit)
	assert.Equal(t, 20, log.lastOffset)

	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var page MessageLogPage
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "log-1", page.Entries[0].ID)
	assert.Equal(t, 41, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 3, page.Pagination.TotalPages)
}
