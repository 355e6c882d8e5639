package http

import (
	"context"
	"errors"
	"net/http"

	"chitieu/internal/core"
	"chitieu/internal/log"
	"chitieu/internal/services"
)

type adminView struct {
	Viewer         Viewer
	Rows           []services.MatrixRow
	Roles          []core.Role
	ShowReports    bool
	ShowCategories bool
	ShowAdmin      bool
}

func (s *Server) handleRoleMatrix(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	rows, err := s.roles.Matrix(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Role matrix load failed", "error", err)
		InternalServerError("Không thể tải ma trận quyền").Write(w)
		return
	}
	roleList, err := s.roles.Roles(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Role list load failed", "error", err)
		InternalServerError("Không thể tải danh sách vai trò").Write(w)
		return
	}

	view := adminView{
		Viewer:         v,
		Rows:           rows,
		Roles:          roleList,
		ShowReports:    showLink(v.Roles, core.RoleReport, s.reportGate),
		ShowCategories: showLink(v.Roles, core.RoleCategory, s.categoryGate),
		ShowAdmin:      true,
	}

	if isHTMX(r) {
		s.render(w, r, "role_matrix.html", view)
		return
	}
	s.render(w, r, "admin.html", view)
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request, v Viewer) {
	s.mutateRole(w, r, v, s.roles.Grant, "Đã cấp quyền")
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request, v Viewer) {
	s.mutateRole(w, r, v, s.roles.Revoke, "Đã thu hồi quyền")
}

func (s *Server) mutateRole(w http.ResponseWriter, r *http.Request, v Viewer,
	apply func(ctx context.Context, userID, roleName string) error, successMsg string) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	userID := sanitizeInput(r.Form.Get("user_id"))
	roleName := sanitizeInput(r.Form.Get("role"))
	if userID == "" || roleName == "" {
		BadRequestError("Thiếu người dùng hoặc vai trò").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	if err := apply(ctx, userID, roleName); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Vai trò không tồn tại").Write(w)
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Role mutation failed",
			"error", err, "target_user", userID, "role", roleName, "admin", v.User.ID)
		InternalServerError("Không thể thay đổi quyền").Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Role assignment changed",
		"target_user", userID, "role", roleName, "admin", v.User.ID)

	if !isHTMX(r) {
		http.Redirect(w, r, "/admin/roles", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerRolesChanged(userID).
		TriggerSuccessNotification(successMsg).
		Write(w)
}
