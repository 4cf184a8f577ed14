// Package httpapi is the HTTP shell around the cart service: stdlib mux,
// JWT bearer auth, CSRF tokens for mutating requests, and login rate
// limiting.
package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"scanline/backend/internal/domain"
	"scanline/backend/internal/service"
	"scanline/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket, giving a
// 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/items", a.requireAuth(a.handleItems, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sessions", a.requireAuth(a.handleSessions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sessions/", a.requireAuth(a.handleSessionActions, "cashier", "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current
// hour bucket. Clients send it in the X-CSRF-Token header on mutating
// requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths exempt from CSRF validation. Login is
// excluded because it happens before any CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces token validation for state-changing methods.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("search"))
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	items, err := a.service.ListItems(r.Context(), term, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SessionOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.service.OpenSession(r.Context(), req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, service.ErrMissingCustomer) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": view})
}

// handleSessionActions dispatches /api/v1/sessions/{id} and its
// sub-resources: scan, prompt, lines/{lineID}, warehouse, customer,
// availability/refresh.
func (a *API) handleSessionActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/sessions/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("session id required"))
		return
	}

	parts := strings.SplitN(tail, "/", 3)
	sessionID := parts[0]

	if len(parts) == 1 {
		a.handleSessionRoot(w, r, sessionID)
		return
	}

	switch parts[1] {
	case "scan":
		a.handleScan(w, r, sessionID)
	case "prompt":
		a.handlePrompt(w, r, sessionID)
	case "lines":
		if len(parts) < 3 || parts[2] == "" {
			writeError(w, http.StatusBadRequest, errors.New("line id required"))
			return
		}
		a.handleLine(w, r, sessionID, parts[2])
	case "warehouse":
		a.handleWarehouse(w, r, sessionID)
	case "customer":
		a.handleCustomer(w, r, sessionID)
	case "availability":
		if len(parts) < 3 || parts[2] != "refresh" {
			writeError(w, http.StatusBadRequest, errors.New("unknown availability action"))
			return
		}
		a.handleAvailabilityRefresh(w, r, sessionID)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown session action"))
	}
}

func (a *API) handleSessionRoot(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodGet:
		view, err := a.service.GetCart(r.Context(), sessionID)
		if err != nil {
			writeError(w, sessionErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": view})
	case http.MethodDelete:
		if err := a.service.CloseSession(r.Context(), sessionID); err != nil {
			writeError(w, sessionErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := a.service.Scan(r.Context(), sessionID, req.ScanText)
	if err != nil {
		writeError(w, sessionErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) handlePrompt(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PromptActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Action != domain.PromptActionConfirm && req.Action != domain.PromptActionCancel {
		writeError(w, http.StatusBadRequest, errors.New("action must be confirm or cancel"))
		return
	}

	outcome, err := a.service.ResolvePrompt(r.Context(), sessionID, req)
	if err != nil {
		status := sessionErrorStatus(err)
		if errors.Is(err, service.ErrNoPromptPending) || errors.Is(err, service.ErrPromptMismatch) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) handleLine(w http.ResponseWriter, r *http.Request, sessionID, lineID string) {
	switch r.Method {
	case http.MethodPatch:
		var req domain.LineQuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		outcome, err := a.service.SetLineQuantity(r.Context(), sessionID, lineID, req.Quantity)
		if err != nil {
			writeError(w, sessionErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	case http.MethodDelete:
		// Removing a line voids rung-up goods, so it needs a manager PIN
		// in the request body.
		var req domain.LineRemoveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !a.pinLimiter.Allow("pin:line-remove:" + clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
			return
		}
		if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
			writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
			return
		}
		outcome, err := a.service.RemoveLine(r.Context(), sessionID, lineID)
		if err != nil {
			writeError(w, sessionErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleWarehouse(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodPut:
		var req domain.WarehouseContextRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.service.SetWarehouseContext(r.Context(), sessionID, req.Warehouse)
		if err != nil {
			writeError(w, sessionErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": view})
	case http.MethodDelete:
		view, err := a.service.SetWarehouseContext(r.Context(), sessionID, "")
		if err != nil {
			writeError(w, sessionErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": view})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomer(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetCustomer(r.Context(), sessionID, req.Customer)
	if err != nil {
		status := sessionErrorStatus(err)
		if errors.Is(err, service.ErrMissingCustomer) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view})
}

func (a *API) handleAvailabilityRefresh(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.AvailabilityRefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ItemCode == "" {
		writeError(w, http.StatusBadRequest, errors.New("item_code required"))
		return
	}

	snap, err := a.service.RefreshAvailability(r.Context(), sessionID, req.ItemCode, req.Warehouse)
	if err != nil {
		status := sessionErrorStatus(err)
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": snap})
}

func sessionErrorStatus(err error) int {
	if errors.Is(err, service.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusUnprocessableEntity
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internal details (SQL
	// errors, file paths) never reach the client. 4xx messages are
	// user-facing and pass through.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
