package httpx

import (
	"net/http"
	"strings"
)

// CORS lets browser front ends on the listed origins call the booking and operator
// APIs. An origin of "*" admits any caller; bearer tokens travel in the
// Authorization header, so credentials mode is never advertised.
type CORS struct {
	origins []string
	any     bool
}

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Authorization, Content-Type, " + RequestIDHeader + ", " + ClientIDHeader
	corsMaxAge  = "600"
)

func NewCORS(origins []string) *CORS {
	c := &CORS{}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			c.any = true
		default:
			c.origins = append(c.origins, o)
		}
	}
	return c
}

// Middleware answers preflights itself. With no origins configured it passes
// requests through untouched.
func (c *CORS) Middleware() Middleware {
	if !c.any && len(c.origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			if origin == "" || !c.allows(origin) {
				next.ServeHTTP(w, r)
				return
			}
			if c.any {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *CORS) allows(origin string) bool {
	if c.any {
		return true
	}
	for _, o := range c.origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
