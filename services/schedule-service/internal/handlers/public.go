package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/workhours/libs/httpx"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/availability"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/catalog"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/committer"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
)

type Booker interface {
	Availability(ctx context.Context, svc model.Service) (availability.Tree, error)
	Book(ctx context.Context, b committer.Booking) (model.Appointment, error)
}

// PublicHandler serves clients: the service list, year/month/day/time navigation and booking.
type PublicHandler struct {
	catalog  *catalog.Catalog
	booker   Booker
	logger   *slog.Logger
	pageSize int
}

func NewPublicHandler(cat *catalog.Catalog, booker Booker, logger *slog.Logger, pageSize int) *PublicHandler {
	if pageSize <= 0 {
		pageSize = 8
	}
	return &PublicHandler{catalog: cat, booker: booker, logger: logger, pageSize: pageSize}
}

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	Description     string `json:"description,omitempty"`
}

func serviceItemOf(svc model.Service) serviceItem {
	return serviceItem{
		ID:              svc.ID,
		Name:            svc.Name,
		DurationMinutes: svc.DurationMinutes(),
		Price:           fmt.Sprintf("%d.%02d", svc.PriceCents/100, svc.PriceCents%100),
		Description:     svc.Description,
	}
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "failed to list services")
		return
	}
	items := make([]serviceItem, 0, len(list))
	for _, svc := range list {
		items = append(items, serviceItemOf(svc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

type availabilityResponse struct {
	ServiceID string   `json:"service_id"`
	Level     string   `json:"level"`
	Items     []string `json:"items"`
	Page      int      `json:"page"`
	Pages     int      `json:"pages"`
}

// Availability returns the next navigation level below the given ?year=&month=&day=. A branch
// that no longer exists falls back to the level above it.
func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	svc, err := h.catalog.Get(r.Context(), strings.TrimSpace(q.Get("service_id")))
	if err != nil {
		writeError(w, h.logger, err, "failed to load service")
		return
	}

	var path [3]int
	depth := 0
	for i, key := range []string{"year", "month", "day"} {
		v := q.Get(key)
		if v == "" {
			break
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid "+key, http.StatusBadRequest)
			return
		}
		path[i] = n
		depth = i + 1
	}
	page := 0
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
	}

	tree, err := h.booker.Availability(r.Context(), svc)
	if err != nil {
		writeError(w, h.logger, err, "failed to compute availability")
		return
	}
	level, items := navigate(tree, path, depth)
	p := availability.Paginate(items, page, h.pageSize)
	if p.Items == nil {
		p.Items = []string{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		ServiceID: svc.ID,
		Level:     level,
		Items:     p.Items,
		Page:      p.Page,
		Pages:     p.Pages,
	})
}

func navigate(tree availability.Tree, path [3]int, depth int) (string, []string) {
	year, month, day := path[0], time.Month(path[1]), path[2]
	if depth >= 3 {
		if times := tree.Times(year, month, day); len(times) > 0 {
			out := make([]string, 0, len(times))
			for _, t := range times {
				out = append(out, t.Format(time.RFC3339))
			}
			return "time", out
		}
	}
	if depth >= 2 {
		if days := tree.Days(year, month); len(days) > 0 {
			out := make([]string, 0, len(days))
			for _, d := range days {
				out = append(out, fmt.Sprintf("%04d-%02d-%02d", year, int(month), d))
			}
			return "day", out
		}
	}
	if depth >= 1 {
		if months := tree.Months(year); len(months) > 0 {
			out := make([]string, 0, len(months))
			for _, m := range months {
				out = append(out, fmt.Sprintf("%04d-%02d", year, int(m)))
			}
			return "month", out
		}
	}
	years := tree.Years()
	out := make([]string, 0, len(years))
	for _, y := range years {
		out = append(out, strconv.Itoa(y))
	}
	return "year", out
}

type bookRequest struct {
	ServiceID  string `json:"service_id"`
	StartTime  string `json:"start_time"`
	ClientName string `json:"client_name"`
}

type conflictResponse struct {
	Reason  string   `json:"reason"`
	Verdict string   `json:"verdict"`
	Level   string   `json:"level"`
	Options []string `json:"options"`
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.Header.Get(httpx.ClientIDHeader))
	if clientID == "" {
		http.Error(w, "missing "+httpx.ClientIDHeader, http.StatusBadRequest)
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	svc, err := h.catalog.Get(r.Context(), strings.TrimSpace(req.ServiceID))
	if err != nil {
		writeError(w, h.logger, err, "failed to load service")
		return
	}

	appt, err := h.booker.Book(r.Context(), committer.Booking{
		ClientID:   clientID,
		ClientName: strings.TrimSpace(req.ClientName),
		Service:    svc,
		Start:      start,
	})
	var conflict *committer.ConflictError
	switch {
	case errors.As(err, &conflict):
		options := conflict.Options()
		if options == nil {
			options = []string{}
		}
		writeJSON(w, http.StatusConflict, conflictResponse{
			Reason:  conflict.Reason,
			Verdict: conflict.Verdict.String(),
			Level:   conflict.Verdict.Level(),
			Options: options,
		})
	case err != nil:
		writeError(w, h.logger, err, "failed to book appointment")
	default:
		writeJSON(w, http.StatusCreated, appt)
	}
}
