package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vetralabs/vetra/internal/core/domain"
	"github.com/vetralabs/vetra/internal/core/ports"
	"github.com/vetralabs/vetra/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	adminActorCtxKey ctxKey = "admin_actor"
	maxJSONBodySize        = 1 << 20

	askRateLimit      = 60
	registerRateLimit = 5
	issueRateLimit    = 3
)

type Handler struct {
	gateway     *usecase.GatewayService
	credentials *usecase.CredentialService
	audit       *usecase.AuditService
	adminTokens *usecase.AdminTokenService
	users       ports.UserRepository
	limiter     ports.RateLimiter
	sessions    *sessionManager
	metrics     *Metrics
}

func NewHandler(
	gateway *usecase.GatewayService,
	credentials *usecase.CredentialService,
	audit *usecase.AuditService,
	adminTokens *usecase.AdminTokenService,
	users ports.UserRepository,
	limiter ports.RateLimiter,
	sessionSecret []byte,
	metrics *Metrics,
) *Handler {
	return &Handler{
		gateway:     gateway,
		credentials: credentials,
		audit:       audit,
		adminTokens: adminTokens,
		users:       users,
		limiter:     limiter,
		sessions:    newSessionManager(sessionSecret),
		metrics:     metrics,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.metrics.instrument)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.handler())

	r.With(h.rateLimit("register", registerRateLimit)).Post("/v1/register", h.register)
	r.With(h.rateLimit("keys", issueRateLimit)).Post("/v1/keys", h.issueKey)
	r.With(h.rateLimit("ask", askRateLimit)).Post("/v1/ask", h.ask)

	r.Group(func(ar chi.Router) {
		ar.Use(h.requireAdmin)
		ar.Post("/v1/admin/keys/{id}/revoke", h.revokeKey)
		ar.Get("/v1/admin/audit", h.listAudit)
	})

	return r
}

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type keyResponse struct {
	APIKey      string `json:"api_key"`
	KeyID       string `json:"key_id"`
	UsesAllowed int    `json:"uses_allowed"`
	ExpiresAt   string `json:"expires_at"`
}

type auditEntryResponse struct {
	CredentialID  string `json:"credential_id"`
	OwnerIdentity string `json:"owner"`
	Endpoint      string `json:"endpoint"`
	PromptLength  int    `json:"prompt_len"`
	NetworkOrigin string `json:"origin,omitempty"`
	At            string `json:"at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(registerSchema, raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req registerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if err := domain.ValidateIdentity(email); err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.users.Upsert(r.Context(), domain.User{
		Email:     email,
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("upsert user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.sessions.issue(w, email)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "registered",
		"user":    email,
	})
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) {
	email, err := h.sessions.verify(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "registration session required")
		return
	}

	token, cred, err := h.credentials.Issue(r.Context(), email, clientOrigin(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	// The plaintext token appears in this response and nowhere else.
	writeJSON(w, http.StatusOK, keyResponse{
		APIKey:      token,
		KeyID:       cred.ID,
		UsesAllowed: cred.UsesAllowed,
		ExpiresAt:   cred.ExpiresAt.UTC().Format(timeFormat),
	})
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "api key required")
		return
	}

	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(askSchema, raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req askRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.gateway.Ask(r.Context(), token, clientOrigin(r), req.Prompt)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	body := make(map[string]any, len(result.Answers)+2)
	for name, answer := range result.Answers {
		body[name] = answer
	}
	body["user"] = result.OwnerIdentity
	body["time"] = result.Time.Format(timeFormat)
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.credentials.Get(r.Context(), id); err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.gateway.RevokeCredential(r.Context(), id, actorFromContext(r.Context())); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.audit.List(r.Context(), domain.AuditFilter{
		CredentialID:  r.URL.Query().Get("credential_id"),
		OwnerIdentity: r.URL.Query().Get("owner"),
		Limit:         limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, auditEntryResponse{
			CredentialID:  entry.CredentialID,
			OwnerIdentity: entry.OwnerIdentity,
			Endpoint:      entry.Endpoint,
			PromptLength:  entry.Metadata.PromptLength,
			NetworkOrigin: entry.Metadata.NetworkOrigin,
			At:            entry.At.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": result})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// rateLimit enforces a fixed-window per-client limit before the handler
// runs. A limiter backend failure fails open: throttling is protective,
// not authoritative, and must not take the API down with it.
func (h *Handler) rateLimit(name string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := h.limiter.Allow(r.Context(), name+":"+clientOrigin(r), limit)
			if err != nil {
				log.Printf("rate limiter check failed, allowing request: %v", err)
				allowed = true
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		subject, err := h.adminTokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		ctx := context.WithValue(r.Context(), adminActorCtxKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// clientOrigin resolves the caller's network origin, preferring the
// first X-Forwarded-For hop when a proxy added one.
func clientOrigin(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(adminActorCtxKey).(string)
	if actor == "" {
		return "admin"
	}
	return actor
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	var raw json.RawMessage
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return raw, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity), errors.Is(err, usecase.ErrPolicyViolation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrCredentialExpired), errors.Is(err, domain.ErrQuotaExceeded):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
