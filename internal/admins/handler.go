package admins

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

// Handler manages admin account endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *rbac.Resolver
	guard     rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *rbac.Resolver, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver, guard: guard, validator: validator.New()}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission("admins.view"))
		r.Get("/", h.listAdmins)
		r.Get("/{id}", h.getAdmin)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission("admins.edit"))
		r.Post("/", h.createAdmin)
		r.Put("/{id}/roles", h.syncRoles)
		r.Post("/{id}/roles", h.assignRole)
	})
}

type adminResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type createAdminRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type syncRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"required"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required"`
}

func (h *Handler) listAdmins(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.ParsePageQuery(r)
	list, total, err := h.service.ListAdmins(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("list admins", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]adminResponse, 0, len(list))
	for _, a := range list {
		out = append(out, adminResponse{ID: a.ID, Email: a.Email, Name: a.Name, IsActive: a.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"admins": out,
		"meta":   shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) getAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid admin id")
		return
	}
	admin, err := h.service.GetAdmin(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "admin not found")
			return
		}
		h.logger.Error("get admin", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adminResponse{ID: admin.ID, Email: admin.Email, Name: admin.Name, IsActive: admin.IsActive})
}

func (h *Handler) createAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	admin, err := h.service.CreateAdmin(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.logger.Error("create admin", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adminResponse{ID: admin.ID, Email: admin.Email, Name: admin.Name, IsActive: admin.IsActive})
}

func (h *Handler) syncRoles(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid admin id")
		return
	}
	var req syncRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.resolver.SyncRoles(r.Context(), rbac.PrincipalAdmin, id, req.RoleIDs); err != nil {
		h.logger.Error("sync admin roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid admin id")
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.resolver.AssignRole(r.Context(), rbac.PrincipalAdmin, id, req.RoleID); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
			return
		}
		h.logger.Error("assign admin role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
