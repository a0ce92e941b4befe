package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/catalog"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/conversation"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/daygrid"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/timeline"
)

// Calendar is what the operator endpoints read besides the session.
type Calendar interface {
	ScheduledDates(ctx context.Context, from schedule.Date) ([]schedule.Date, error)
	ListAppointments(ctx context.Context, since time.Time, limit int) ([]model.Appointment, error)
}

type OperatorHandler struct {
	cfg      schedule.Config
	op       *conversation.Operator
	catalog  *catalog.Catalog
	calendar Calendar
	logger   *slog.Logger
}

func NewOperatorHandler(cfg schedule.Config, op *conversation.Operator, cat *catalog.Catalog, calendar Calendar, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{cfg: cfg, op: op, catalog: cat, calendar: calendar, logger: logger}
}

type daysResponse struct {
	Year  int          `json:"year"`
	Month int          `json:"month"`
	Grid  daygrid.Grid `json:"grid"`
	// Selected starts as the stored schedule and spans every month.
	Selected  schedule.DateSet `json:"selected"`
	Scheduled []schedule.Date  `json:"scheduled"`
}

type timesResponse struct {
	Times     timeline.Line `json:"times"`
	Labels    []string      `json:"labels"`
	Intervals []string      `json:"intervals"`
}

type clickRequest struct {
	Index *int   `json:"index"`
	Token string `json:"token"`
}

func (h *OperatorHandler) days(ctx context.Context, s *conversation.OperatorSession) (daysResponse, error) {
	scheduled, err := h.calendar.ScheduledDates(ctx, s.Today)
	if err != nil {
		return daysResponse{}, err
	}
	if scheduled == nil {
		scheduled = []schedule.Date{}
	}
	return daysResponse{Year: s.Year, Month: int(s.Month), Grid: s.Grid, Selected: s.Selected, Scheduled: scheduled}, nil
}

func (h *OperatorHandler) times(s *conversation.OperatorSession) timesResponse {
	labels := make([]string, len(s.Times))
	for i := range labels {
		labels[i] = h.cfg.PointLabel(i)
	}
	return timesResponse{Times: s.Times, Labels: labels, Intervals: timeline.Labels(h.cfg, s.Intervals())}
}

// Days shows the session's month, or switches to ?year=&month= when given.
func (h *OperatorHandler) Days(w http.ResponseWriter, r *http.Request) {
	operatorID := r.Header.Get(operatorHeader)
	q := r.URL.Query()

	var (
		s   *conversation.OperatorSession
		err error
	)
	if q.Get("year") != "" || q.Get("month") != "" {
		year, yerr := strconv.Atoi(q.Get("year"))
		month, merr := strconv.Atoi(q.Get("month"))
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			http.Error(w, "year and month must be given together, month in 1..12", http.StatusBadRequest)
			return
		}
		s, err = h.op.ShowMonth(r.Context(), operatorID, year, time.Month(month))
	} else {
		s, err = h.op.Session(r.Context(), operatorID)
	}
	if err != nil {
		writeError(w, h.logger, err, "failed to load days")
		return
	}
	resp, err := h.days(r.Context(), s)
	if err != nil {
		writeError(w, h.logger, err, "failed to load days")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClickDay takes either a grid index or a cell token such as "week2", "friday" or an ISO date.
func (h *OperatorHandler) ClickDay(w http.ResponseWriter, r *http.Request) {
	operatorID := r.Header.Get(operatorHeader)
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	index := -1
	switch {
	case req.Index != nil:
		index = *req.Index
	case req.Token != "":
		s, err := h.op.Session(r.Context(), operatorID)
		if err != nil {
			writeError(w, h.logger, err, "failed to load session")
			return
		}
		if index, err = s.IndexOf(req.Token); err != nil {
			writeError(w, h.logger, err, "failed to resolve token")
			return
		}
	default:
		http.Error(w, "index or token required", http.StatusBadRequest)
		return
	}

	s, err := h.op.ClickDay(r.Context(), operatorID, index)
	if err != nil {
		writeError(w, h.logger, err, "failed to apply click")
		return
	}
	resp, err := h.days(r.Context(), s)
	if err != nil {
		writeError(w, h.logger, err, "failed to load days")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OperatorHandler) Times(w http.ResponseWriter, r *http.Request) {
	s, err := h.op.Session(r.Context(), r.Header.Get(operatorHeader))
	if err != nil {
		writeError(w, h.logger, err, "failed to load times")
		return
	}
	writeJSON(w, http.StatusOK, h.times(s))
}

func (h *OperatorHandler) ClickTime(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		http.Error(w, "index required", http.StatusBadRequest)
		return
	}
	s, err := h.op.ClickTime(r.Context(), r.Header.Get(operatorHeader), *req.Index)
	if err != nil {
		writeError(w, h.logger, err, "failed to apply click")
		return
	}
	writeJSON(w, http.StatusOK, h.times(s))
}

func (h *OperatorHandler) Save(w http.ResponseWriter, r *http.Request) {
	report, err := h.op.Commit(r.Context(), r.Header.Get(operatorHeader))
	if err != nil {
		if len(report.Saved)+len(report.Cleared) > 0 {
			h.logger.Error("schedule partially saved", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "some dates failed to save", "report": report})
			return
		}
		writeError(w, h.logger, err, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *OperatorHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.op.Reset(r.Context(), r.Header.Get(operatorHeader)); err != nil {
		writeError(w, h.logger, err, "failed to reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OperatorHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req catalog.Draft
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	svc, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err, "failed to create service")
		return
	}
	writeJSON(w, http.StatusCreated, serviceItemOf(svc))
}

func (h *OperatorHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	since := time.Now()
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = t
	}
	appts, err := h.calendar.ListAppointments(r.Context(), since, limit)
	if err != nil {
		writeError(w, h.logger, err, "failed to list appointments")
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}
