package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/workhours/libs/auth"
	"golang.org/x/crypto/bcrypt"
)

const operatorHeader = "X-Operator-Id"

// AuthHandler logs in the single business operator.
type AuthHandler struct {
	operatorID   string
	passwordHash string
	secret       string
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthHandler(operatorID, passwordHash, secret string, ttl time.Duration) *AuthHandler {
	if operatorID == "" {
		operatorID = "operator"
	}
	return &AuthHandler{operatorID: operatorID, passwordHash: passwordHash, secret: secret, ttl: ttl, now: time.Now}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Password = strings.TrimSpace(req.Password)
	if req.Password == "" {
		http.Error(w, "password required", http.StatusBadRequest)
		return
	}
	if h.passwordHash == "" || verifyPassword(h.passwordHash, req.Password) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.Issue(h.operatorID, auth.RoleOperator, h.secret, h.ttl, h.now())
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.ttl / time.Second),
	})
}

// HashPassword produces the value for OPERATOR_PASSWORD_HASH.
func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}

// requireOperator accepts only operator tokens and passes the operator id on in a header.
func requireOperator(next http.Handler, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), secret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleOperator {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		r.Header.Set(operatorHeader, claims.Sub)
		next.ServeHTTP(w, r)
	})
}
