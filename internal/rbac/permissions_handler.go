package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/castellan/castellan/internal/platform/httpx"
)

// PermissionsHandler exposes permission listing and the cached matrix.
type PermissionsHandler struct {
	logger  *slog.Logger
	repo    Repository
	builder *MatrixBuilder
	guard   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, repo Repository, builder *MatrixBuilder, guard Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, repo: repo, builder: builder, guard: guard}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission("permissions.view"))
		r.Get("/", h.listPermissions)
		r.Get("/matrix", h.showMatrix)
	})
}

type permissionResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	PrincipalType string `json:"principal_type"`
	ParentID      *int64 `json:"parent_id,omitempty"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.repo.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			ID:            p.ID,
			Name:          p.Name,
			PrincipalType: string(p.PrincipalType),
			ParentID:      p.ParentID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *PermissionsHandler) showMatrix(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"
	matrix, err := h.builder.Permissions(r.Context(), force)
	if err != nil {
		h.logger.Error("load permission matrix", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matrix": matrix})
}
