package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"chitieu/internal/config"
	"chitieu/internal/core"
	"chitieu/internal/log"
	"chitieu/internal/services"
	"chitieu/internal/storage"
)

// entriesView is the template payload for the entry list page.
type entriesView struct {
	Viewer         Viewer
	Result         core.DeriveResult
	Years          []int
	Categories     []core.Category
	Selected       string
	Status         core.StoreStatus
	CategoryStatus core.StoreStatus
	Query          string
	PrevQuery      string
	NextQuery      string
	ShowReports    bool
	ShowCategories bool
	ShowAdmin      bool
}

// loadStores refreshes the viewer's entry and category stores in parallel.
// A failed refresh is not fatal: the page renders the stale cached lists
// with a warning banner instead of going blank.
func (s *Server) loadStores(r *http.Request, owner string) {
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return s.entries.Load(ctx, owner) })
	g.Go(func() error { return s.categories.Load(ctx, owner) })
	if err := g.Wait(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Store refresh failed",
			"error", err, "user_id", owner)
	}
}

// showLink reports whether a navigation link should render for the viewer.
// Hidden gates suppress the link entirely; visible ones always show it.
func showLink(roles core.RoleSet, role, gatePolicy string) bool {
	return roles.Has(role) || gatePolicy != config.GateHidden
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.loadStores(r, v.User.ID)
	entries, status := s.entries.Entries(v.User.ID)
	categories, catStatus := s.categories.Categories(v.User.ID)

	params := ParseFilterParams(r.URL.Query(), s.pageSize)
	result := core.Derive(entries, categories, params)

	view := entriesView{
		Viewer:         v,
		Result:         result,
		Years:          core.Years(entries),
		Categories:     categories,
		Selected:       s.categories.NormalizeSelection(v.User.ID, result.Params.Category),
		Status:         status,
		CategoryStatus: catStatus,
		Query:          FilterQuery(result.Params),
		PrevQuery:      pageQuery(result, -1),
		NextQuery:      pageQuery(result, 1),
		ShowReports:    showLink(v.Roles, core.RoleReport, s.reportGate),
		ShowCategories: showLink(v.Roles, core.RoleCategory, s.categoryGate),
		ShowAdmin:      showLink(v.Roles, core.RoleSuperAdmin, s.adminGate),
	}

	if isHTMX(r) {
		s.render(w, r, "entry_list.html", view)
		return
	}
	s.render(w, r, "entries.html", view)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	entry, err := ParseEntryForm(r.Form, v.User.ID)
	if err != nil {
		entryFormError(err).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	saved, err := s.entries.Add(ctx, entry)
	if err != nil {
		if isValidationError(err) {
			entryFormError(err).Write(w)
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Entry save failed",
			"error", err, "user_id", v.User.ID)
		InternalServerError("Không thể lưu khoản chi").Write(w)
		return
	}

	s.invalidateOverview(v.User.ID, saved.Year())
	s.structured.LogEntryCreated(r.Context(), saved.ID, saved.Description, saved.Amount.Dong, saved.Category)

	if !isHTMX(r) {
		http.Redirect(w, r, "/entries", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerFormReset().
		TriggerEntryChanged(saved.Year()).
		TriggerSuccessNotification(fmt.Sprintf("Đã ghi khoản chi: %s (%s)", saved.Description, saved.Amount.Format())).
		Write(w)
}

// entryDetailView backs the edit panel for a single entry, including its
// receipt images when image storage is configured.
type entryDetailView struct {
	Viewer        Viewer
	Entry         core.Entry
	Categories    []core.Category
	Images        []storage.EntryImage
	ImagesEnabled bool
}

func (s *Server) handleEntryDetail(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	id, ok := ParseID(r.URL.Query().Get("id"))
	if !ok {
		BadRequestError("Thiếu mã khoản chi").Write(w)
		return
	}

	entry, err := s.entries.Get(r.Context(), v.User.ID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Không tìm thấy khoản chi").Write(w)
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Entry lookup failed",
			"error", err, "entry_id", id, "user_id", v.User.ID)
		InternalServerError("Không thể tải khoản chi").Write(w)
		return
	}

	categories, _ := s.categories.Categories(v.User.ID)
	view := entryDetailView{
		Viewer:        v,
		Entry:         entry,
		Categories:    categories,
		ImagesEnabled: s.images != nil && s.imageRepo != nil,
	}
	if view.ImagesEnabled {
		images, err := s.imageRepo.ListEntryImages(r.Context(), id)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Image list failed",
				"error", err, "entry_id", id)
		}
		view.Images = images
	}

	s.render(w, r, "entry_detail.html", view)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	entry, err := ParseEntryForm(r.Form, v.User.ID)
	if err != nil {
		entryFormError(err).Write(w)
		return
	}
	if entry.ID <= 0 {
		BadRequestError("Thiếu mã khoản chi").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	if err := s.entries.Update(ctx, entry); err != nil {
		switch {
		case isValidationError(err):
			entryFormError(err).Write(w)
		case errors.Is(err, core.ErrNotFound):
			NotFoundError("Không tìm thấy khoản chi").Write(w)
		default:
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Entry update failed",
				"error", err, "entry_id", entry.ID, "user_id", v.User.ID)
			InternalServerError("Không thể cập nhật khoản chi").Write(w)
		}
		return
	}

	s.invalidateOverview(v.User.ID, entry.Year())

	if !isHTMX(r) {
		http.Redirect(w, r, "/entries", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerEntryChanged(entry.Year()).
		TriggerSuccessNotification("Đã cập nhật khoản chi").
		Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request, v Viewer) {
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
		BadRequestError("Thiếu mã khoản chi").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	// Grab the year before the entry disappears, so the cached overview for
	// that year can be dropped even when the list was never loaded.
	year := 0
	if e, err := s.entries.Get(ctx, v.User.ID, id); err == nil {
		year = e.Year()
	}

	err := s.entries.Delete(ctx, v.User.ID, id, Confirmed(r.Form))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfirmationRequired):
			UnprocessableEntityError("Cần xác nhận trước khi xóa").Write(w)
		case errors.Is(err, core.ErrNotFound):
			NotFoundError("Không tìm thấy khoản chi").Write(w)
		default:
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Entry delete failed",
				"error", err, "entry_id", id, "user_id", v.User.ID)
			InternalServerError("Không thể xóa khoản chi").Write(w)
		}
		return
	}

	if year != 0 {
		s.invalidateOverview(v.User.ID, year)
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/entries", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerEntryChanged(year).
		TriggerSuccessNotification("Đã xóa khoản chi").
		Write(w)
}

// pageQuery serializes the view state with the page shifted by delta, or
// returns "" when that page does not exist.
func pageQuery(result core.DeriveResult, delta int) string {
	page := result.Params.Page + delta
	if page < 1 || page > result.TotalPages {
		return ""
	}
	params := result.Params
	params.Page = page
	return FilterQuery(params)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrMissingOwner)
}

func entryFormError(err error) *HTMXResponseBuilder {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return UnprocessableEntityError("Số tiền không hợp lệ")
	case errors.Is(err, core.ErrEmptyDescription):
		return UnprocessableEntityError("Mô tả không được để trống")
	case errors.Is(err, core.ErrInvalidDate):
		return UnprocessableEntityError("Ngày không hợp lệ")
	default:
		return UnprocessableEntityError("Dữ liệu không hợp lệ")
	}
}
