package controllers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchpos/internal/delivery/http/helpers"
	"merchpos/internal/domain"
)

func newEventFixture() (*EventController, *fakeEventService, *fakeTransactionService, *fakeActivityService) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	events := &fakeEventService{events: map[string]*domain.Event{
		testEventID: {ID: testEventID, Name: "Org Fair", Status: domain.EventStatusLive, StartDate: &start},
	}}
	txs := &fakeTransactionService{summary: &domain.SalesSummary{
		EventID:          testEventID,
		TransactionCount: 2,
		ItemsSold:        5,
		GrossSales:       decimal.RequireFromString("1300"),
		NetSales:         decimal.RequireFromString("1250"),
	}}
	activity := &fakeActivityService{}
	return NewEventController(testLogger(), events, txs, &fakeReportService{}, activity), events, txs, activity
}

func TestEventController_CreateEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantState  string
	}{
		{name: "defaults to planning", body: `{"name":"Org Fair"}`, wantStatus: http.StatusCreated, wantState: domain.EventStatusPlanning},
		{name: "explicit status and dates", body: `{"name":"Org Fair","status":"Upcoming","start_date":"2025-03-01T09:00:00Z","end_date":"2025-03-02T18:00:00Z"}`, wantStatus: http.StatusCreated, wantState: domain.EventStatusUpcoming},
		{name: "missing name", body: `{"status":"Live"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown status", body: `{"name":"Org Fair","status":"Cancelled"}`, wantStatus: http.StatusBadRequest},
		{name: "end before start", body: `{"name":"Org Fair","start_date":"2025-03-02T00:00:00Z","end_date":"2025-03-01T00:00:00Z"}`, wantStatus: http.StatusBadRequest},
		{name: "store failure", body: `{"name":"Org Fair"}`, createErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, events, _, activity := newEventFixture()
			events.createErr = tt.createErr
			rr := serve("POST /api/events", c.CreateEvent, newRequest(http.MethodPost, "/api/events", tt.body, testUserID))
			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantState == "" {
				return
			}
			var event domain.Event
			require.Nil(t, decodeEnvelope(t, rr, &event))
			assert.Equal(t, testEventID, event.ID)
			assert.Equal(t, tt.wantState, event.Status)
			assert.Equal(t, []string{domain.ActionCreateEvent + ":" + testEventID}, activity.recorded)
		})
	}
}

func TestEventController_GetListUpdateDelete(t *testing.T) {
	c, events, _, _ := newEventFixture()

	rr := serve("GET /api/events/{id}", c.GetEvent, newRequest(http.MethodGet, "/api/events/"+testEventID, "", testUserID))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve("GET /api/events/{id}", c.GetEvent, newRequest(http.MethodGet, "/api/events/"+testProductID, "", testUserID))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve("GET /api/events", c.ListEvents, newRequest(http.MethodGet, "/api/events?status=Live", "", testUserID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.EventStatusLive, events.listed)

	rr = serve("PATCH /api/events/{id}", c.UpdateEvent,
		newRequest(http.MethodPatch, "/api/events/"+testEventID, `{"status":"Completed"}`, testUserID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.EventStatusCompleted, events.events[testEventID].Status)

	rr = serve("PATCH /api/events/{id}", c.UpdateEvent,
		newRequest(http.MethodPatch, "/api/events/"+testEventID, `{"status":"Over"}`, testUserID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve("DELETE /api/events/{id}", c.DeleteEvent, newRequest(http.MethodDelete, "/api/events/"+testEventID, "", testUserID))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, testEventID, events.deleted)
}

func TestEventController_GetSummary(t *testing.T) {
	tests := []struct {
		name       string
		eventID    string
		wantStatus int
	}{
		{name: "known event", eventID: testEventID, wantStatus: http.StatusOK},
		{name: "unknown event", eventID: testProductID, wantStatus: http.StatusNotFound},
		{name: "bad id", eventID: "fair", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, txs, _ := newEventFixture()
			rr := serve("GET /api/events/{id}/summary", c.GetSummary,
				newRequest(http.MethodGet, "/api/events/"+tt.eventID+"/summary", "", testUserID))
			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, testEventID, txs.summaryFor)
			var summary domain.SalesSummary
			require.Nil(t, decodeEnvelope(t, rr, &summary))
			assert.Equal(t, 5, summary.ItemsSold)
			assert.True(t, decimal.RequireFromString("1250").Equal(summary.NetSales))
		})
	}
}

func TestEventController_DownloadReport(t *testing.T) {
	t.Run("streams spreadsheet", func(t *testing.T) {
		c, _, _, _ := newEventFixture()
		rr := serve("GET /api/events/{id}/report.xlsx", c.DownloadReport,
			newRequest(http.MethodGet, "/api/events/"+testEventID+"/report.xlsx", "", testUserID))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), testEventID)
		assert.Equal(t, "xlsx:"+testEventID, rr.Body.String())
	})

	t.Run("unknown event is json 404", func(t *testing.T) {
		c, _, _, _ := newEventFixture()
		c.Reports = &fakeReportService{err: domain.ErrNotFound}
		rr := serve("GET /api/events/{id}/report.xlsx", c.DownloadReport,
			newRequest(http.MethodGet, "/api/events/"+testEventID+"/report.xlsx", "", testUserID))
		require.Equal(t, http.StatusNotFound, rr.Code)
		apiErr := decodeEnvelope(t, rr, nil)
		require.NotNil(t, apiErr)
		assert.Equal(t, helpers.ErrCodeNotFound, apiErr.Code)
	})
}
