package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/castellan/castellan/internal/platform/httpx"
	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows. On login the
// principal's role names and merged permission list are attached to the
// session once; route guards only ever read that attached list. The
// /auth/me endpoint re-merges from the permission matrix, which is the
// documented refresh point for long-lived sessions.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	resolver       *rbac.Resolver
	matrix         *rbac.MatrixBuilder
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *rbac.Resolver, matrix *rbac.MatrixBuilder, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		resolver:       resolver,
		matrix:         matrix,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Get("/csrf", h.handleCSRF)
}

type loginRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	PrincipalType string `json:"principal_type" validate:"required,oneof=admin user"`
}

type profileResponse struct {
	ID            int64    `json:"id"`
	Email         string   `json:"email"`
	PrincipalType string   `json:"principal_type"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	principalType := rbac.PrincipalType(req.PrincipalType)
	account, err := h.service.Authenticate(r.Context(), principalType, req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}

	roleNames, permissions, err := h.mergeAuthorization(r, principalType, account.ID)
	if err != nil {
		h.logger.Error("merge authorization", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetPrincipal(strconv.FormatInt(account.ID, 10), string(principalType))
	sess.SetAuthorization(roleNames, permissions)

	httpx.JSON(w, http.StatusOK, profileResponse{
		ID:            account.ID,
		Email:         account.Email,
		PrincipalType: string(principalType),
		Roles:         roleNames,
		Permissions:   permissions,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe returns the current profile with authorization re-merged from
// the matrix, refreshing the session-attached lists.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.PrincipalID() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
		return
	}
	id, err := strconv.ParseInt(sess.PrincipalID(), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "invalid session principal")
		return
	}
	principalType := rbac.PrincipalType(sess.PrincipalType())

	roleNames, permissions, err := h.mergeAuthorization(r, principalType, id)
	if err != nil {
		h.logger.Error("refresh authorization", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetAuthorization(roleNames, permissions)

	httpx.JSON(w, http.StatusOK, profileResponse{
		ID:            id,
		PrincipalType: string(principalType),
		Roles:         roleNames,
		Permissions:   permissions,
	})
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// LoginForTest exposes the login handler for tests.
func (h *Handler) LoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// MeForTest exposes the profile handler for tests.
func (h *Handler) MeForTest(w http.ResponseWriter, r *http.Request) {
	h.handleMe(w, r)
}

func (h *Handler) mergeAuthorization(r *http.Request, principalType rbac.PrincipalType, principalID int64) ([]string, []string, error) {
	refs, err := h.resolver.Roles(r.Context(), principalType, principalID)
	if err != nil {
		return nil, nil, err
	}
	roleNames := make([]string, 0, len(refs))
	for _, ref := range refs {
		roleNames = append(roleNames, ref.Name)
	}
	matrix, err := h.matrix.Permissions(r.Context(), false)
	if err != nil {
		return nil, nil, err
	}
	return roleNames, matrix.PermissionsFor(principalType, roleNames), nil
}
