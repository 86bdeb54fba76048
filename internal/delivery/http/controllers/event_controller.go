package controllers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CreateEventRequest is the request body for POST /api/events. Status defaults to Planning.
type CreateEventRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Status      string     `json:"status" validate:"omitempty,oneof=Planning Upcoming Live Completed"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Location    string     `json:"location" validate:"max=200"`
	Description string     `json:"description"`
}

// Validate implements Validator.
func (req CreateEventRequest) Validate() []string {
	var errs []string
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		errs = append(errs, "end_date must not precede start_date")
	}
	return errs
}

// UpdateEventRequest is the request body for PATCH /api/events/{id}. All fields optional; omitted fields are unchanged.
type UpdateEventRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Status      *string    `json:"status" validate:"omitempty,oneof=Planning Upcoming Live Completed"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	Description *string    `json:"description"`
}

// EventSuccessResponse is the success response envelope for endpoints returning one event.
type EventSuccessResponse struct {
	Data  *domain.Event `json:"data"`
	Error *h.APIError   `json:"error"`
}

// SummarySuccessResponse is the success response envelope for sales summaries.
type SummarySuccessResponse struct {
	Data  *domain.SalesSummary `json:"data"`
	Error *h.APIError          `json:"error"`
}

type EventController struct {
	Logger       *slog.Logger
	Service      domain.EventService
	Transactions domain.TransactionService
	Reports      domain.ReportService
	Activity     domain.ActivityService
}

func NewEventController(logger *slog.Logger, svc domain.EventService, transactions domain.TransactionService, reports domain.ReportService, activity domain.ActivityService) *EventController {
	return &EventController{
		Logger:       logger,
		Service:      svc,
		Transactions: transactions,
		Reports:      reports,
		Activity:     activity,
	}
}

// ListEvents godoc
// @Summary List events
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param status query string false "Planning, Upcoming, Live or Completed"
// @Success 200 {object} helpers.APIResponse "data is an array of events"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /api/events [get]
func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := c.Service.ListEvents(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, events)
}

// GetEvent godoc
// @Summary Get an event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/events/{id} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	event, err := c.Service.GetEvent(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// CreateEvent godoc
// @Summary Create an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateEventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /api/events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	event := domain.NewEvent(req.Name, req.Status, req.StartDate, req.EndDate, time.Time{}, time.Time{})
	event.Location = req.Location
	event.Description = req.Description
	if err := c.Service.CreateEvent(r.Context(), event); err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionCreateEvent, "event", event.ID, event.Name)
	h.WriteJSONSuccess(w, http.StatusCreated, event)
}

// UpdateEvent godoc
// @Summary Update an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID (UUID)"
// @Param body body UpdateEventRequest true "Fields to change"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/events/{id} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateEventRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.UpdateEvent(r.Context(), id, domain.EventUpdate{
		Name:        req.Name,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionUpdateEvent, "event", id, "status="+event.Status)
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Hard delete. Transactions and per-event stock that reference the event are kept. Admin or above.
// @Tags events
// @Security BearerAuth
// @Param id path string true "Event ID (UUID)"
// @Success 204 "No Content"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/events/{id} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteEvent(r.Context(), id); err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionDeleteEvent, "event", id, "")
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary godoc
// @Summary Sales summary for one event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID (UUID)"
// @Success 200 {object} controllers.SummarySuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/events/{id}/summary [get]
func (c *EventController) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := c.Service.GetEvent(r.Context(), id); err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	summary, err := c.Transactions.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, summary)
}

// DownloadReport godoc
// @Summary Download an event's sales report
// @Description Spreadsheet with Summary, Transactions and Products sheets.
// @Tags events
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path string true "Event ID (UUID)"
// @Success 200 {file} file
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/events/{id}/report.xlsx [get]
func (c *EventController) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := c.Reports.WriteEventSalesReport(r.Context(), id, &buf); err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="event-`+id+`-sales.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		c.Logger.WarnContext(r.Context(), "write report", "event_id", id, "err", err)
	}
}
