// Package catalog validates operator input for new services and stores them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 1000
	maxDuration       = 24 * time.Hour
)

// InputError is a rejection the operator can read and fix. Nothing was stored.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Field + ": " + e.Message }

func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Draft is a service as typed by the operator.
type Draft struct {
	Name        string `json:"name"`
	Duration    string `json:"duration_minutes"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// ParseDuration accepts a whole number of minutes that is a positive multiple of the slot
// granularity and at most one day.
func ParseDuration(cfg schedule.Config, raw string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &InputError{Field: "duration_minutes", Message: fmt.Sprintf("%q is not a whole number of minutes", raw)}
	}
	if n <= 0 || n > int(maxDuration/time.Minute) {
		return 0, &InputError{Field: "duration_minutes", Message: "must be between 1 and 1440 minutes"}
	}
	d := time.Duration(n) * time.Minute
	if _, err := cfg.SlotsNeeded(d); err != nil {
		return 0, &InputError{Field: "duration_minutes", Message: fmt.Sprintf("must be a multiple of %d minutes", cfg.GranularityMinutes)}
	}
	return d, nil
}

// ParsePrice accepts a non-negative decimal with at most two fractional digits, using either
// '.' or ',' as the separator, and returns cents.
func ParsePrice(raw string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	reject := &InputError{Field: "price", Message: fmt.Sprintf("%q is not a price like 25 or 25.50", raw)}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if !digits(whole) || (hasFrac && (!digits(frac) || len(frac) > 2)) {
		return 0, reject
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > 1_000_000_000 {
		return 0, reject
	}
	var cents int64
	if hasFrac {
		cents, _ = strconv.ParseInt(frac, 10, 64)
		if len(frac) == 1 {
			cents *= 10
		}
	}
	return units*100 + cents, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Build validates every field of d and returns a service with a fresh id.
func Build(cfg schedule.Config, d Draft) (model.Service, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return model.Service{}, &InputError{Field: "name", Message: "is required"}
	}
	if len(name) > maxNameLen {
		return model.Service{}, &InputError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxNameLen)}
	}
	duration, err := ParseDuration(cfg, d.Duration)
	if err != nil {
		return model.Service{}, err
	}
	price, err := ParsePrice(d.Price)
	if err != nil {
		return model.Service{}, err
	}
	desc := strings.TrimSpace(d.Description)
	if len(desc) > maxDescriptionLen {
		return model.Service{}, &InputError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLen)}
	}
	return model.Service{
		ID:          uuid.NewString(),
		Name:        name,
		Duration:    duration,
		PriceCents:  price,
		Description: desc,
	}, nil
}

type Store interface {
	CreateService(ctx context.Context, svc model.Service) error
	GetService(ctx context.Context, id string) (model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
}

type Catalog struct {
	cfg   schedule.Config
	store Store
}

func New(cfg schedule.Config, store Store) *Catalog {
	return &Catalog{cfg: cfg, store: store}
}

// Create validates d and stores the resulting service.
func (c *Catalog) Create(ctx context.Context, d Draft) (model.Service, error) {
	svc, err := Build(c.cfg, d)
	if err != nil {
		return model.Service{}, err
	}
	if err := c.store.CreateService(ctx, svc); err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (model.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Service{}, &InputError{Field: "service_id", Message: "must be a uuid"}
	}
	return c.store.GetService(ctx, id)
}

func (c *Catalog) List(ctx context.Context) ([]model.Service, error) {
	return c.store.ListServices(ctx)
}
