package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/castellan/castellan/internal/platform/httpx"
	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/shared"
)

// Handler manages role management endpoints. Permission mutations go
// through the matrix builder so the cached permission matrix is rebuilt
// before the response is written.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *rbac.Resolver
	matrix    *rbac.MatrixBuilder
	guard     rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *rbac.Resolver, matrix *rbac.MatrixBuilder, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver, matrix: matrix, guard: guard, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission("roles.view"))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
		r.Get("/{id}/permissions", h.listRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission("roles.edit"))
		r.Post("/", h.createRole)
		r.Post("/{id}/permissions", h.updatePermission)
	})
}

type roleResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	PrincipalType string `json:"principal_type"`
	IsSystem      bool   `json:"is_system"`
	Status        string `json:"status"`
}

type createRoleRequest struct {
	Name          string `json:"name" validate:"required"`
	PrincipalType string `json:"principal_type" validate:"required,oneof=admin user"`
}

type updatePermissionRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required"`
	Grant        *bool `json:"grant" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.ParsePageQuery(r)
	list, total, err := h.service.ListRoles(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(list))
	for _, role := range list {
		out = append(out, toResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles": out,
		"meta":  shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
			return
		}
		h.logger.Error("get role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.PrincipalType)
	if err != nil {
		if errors.Is(err, ErrReservedName) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(role))
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	names, err := h.service.RolePermissionNames(r.Context(), id)
	if err != nil {
		h.logger.Error("list role permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": names})
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var req updatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.matrix.UpdatePermission(r.Context(), id, req.PermissionID, *req.Grant); err != nil {
		switch {
		case errors.Is(err, rbac.ErrSystemRoleImmutable):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		case errors.Is(err, rbac.ErrRoleNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
		case errors.Is(err, rbac.ErrPermissionNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "permission not found")
		default:
			h.logger.Error("update role permission", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func toResponse(role Role) roleResponse {
	return roleResponse{
		ID:            role.ID,
		Name:          role.Name,
		PrincipalType: role.PrincipalType,
		IsSystem:      role.IsSystem,
		Status:        role.Status,
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
