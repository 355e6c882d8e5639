package http

import (
	"context"
	"errors"
	"net/http"

	"chitieu/internal/core"
	"chitieu/internal/log"
	"chitieu/internal/services"
)

type categoryRow struct {
	core.Category
	InUse bool
}

type categoriesView struct {
	Viewer         Viewer
	Categories     []categoryRow
	Status         core.StoreStatus
	ShowReports    bool
	ShowCategories bool
	ShowAdmin      bool
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.loadStores(r, v.User.ID)
	categories, status := s.categories.Categories(v.User.ID)
	entries, _ := s.entries.Entries(v.User.ID)

	used := make(map[string]bool, len(entries))
	for _, e := range entries {
		used[e.Category] = true
	}
	rows := make([]categoryRow, len(categories))
	for i, c := range categories {
		rows[i] = categoryRow{Category: c, InUse: used[c.Name]}
	}

	view := categoriesView{
		Viewer:         v,
		Categories:     rows,
		Status:         status,
		ShowReports:    showLink(v.Roles, core.RoleReport, s.reportGate),
		ShowCategories: true,
		ShowAdmin:      showLink(v.Roles, core.RoleSuperAdmin, s.adminGate),
	}

	if isHTMX(r) {
		s.render(w, r, "category_list.html", view)
		return
	}
	s.render(w, r, "categories.html", view)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	category := ParseCategoryForm(r.Form, v.User.ID)
	saved, err := s.categories.Add(ctx, category)
	if err != nil {
		if errors.Is(err, core.ErrEmptyName) {
			UnprocessableEntityError("Tên danh mục không được để trống").Write(w)
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Category save failed",
			"error", err, "user_id", v.User.ID)
		InternalServerError("Không thể lưu danh mục").Write(w)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/categories", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerFormReset().
		TriggerCategoryChanged().
		TriggerSuccessNotification("Đã thêm danh mục " + saved.Name).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	category := ParseCategoryForm(r.Form, v.User.ID)
	if category.ID <= 0 {
		BadRequestError("Thiếu mã danh mục").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	if err := s.categories.Update(ctx, category); err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyName):
			UnprocessableEntityError("Tên danh mục không được để trống").Write(w)
		case errors.Is(err, core.ErrNotFound):
			NotFoundError("Không tìm thấy danh mục").Write(w)
		default:
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Category update failed",
				"error", err, "category_id", category.ID, "user_id", v.User.ID)
			InternalServerError("Không thể cập nhật danh mục").Write(w)
		}
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/categories", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerCategoryChanged().
		TriggerSuccessNotification("Đã cập nhật danh mục").
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, ok := ParseID(r.Form.Get("id"))
	if !ok {
		BadRequestError("Thiếu mã danh mục").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	err := s.categories.Delete(ctx, v.User.ID, id, Confirmed(r.Form))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfirmationRequired):
			UnprocessableEntityError("Cần xác nhận trước khi xóa").Write(w)
		case errors.Is(err, core.ErrCategoryInUse):
			ConflictError("Danh mục đang được sử dụng, không thể xóa").Write(w)
		case errors.Is(err, core.ErrNotFound):
			NotFoundError("Không tìm thấy danh mục").Write(w)
		default:
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Category delete failed",
				"error", err, "category_id", id, "user_id", v.User.ID)
			InternalServerError("Không thể xóa danh mục").Write(w)
		}
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/categories", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerCategoryChanged().
		TriggerSuccessNotification("Đã xóa danh mục").
		Write(w)
}
