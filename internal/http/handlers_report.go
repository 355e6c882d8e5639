package http

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chitieu/internal/core"
	"chitieu/internal/log"
)

type reportRow struct {
	Name    string
	Amount  string
	Percent int
	Width   int
}

type monthBar struct {
	Month  int
	Amount string
	Width  int
}

type reportsView struct {
	Viewer         Viewer
	Year           int
	Years          []int
	Total          string
	Rows           []reportRow
	GroupRows      []reportRow
	Months         []monthBar
	Result         core.DeriveResult
	Categories     []core.Category
	Status         core.StoreStatus
	ExportQuery    string
	PrevQuery      string
	NextQuery      string
	ShowReports    bool
	ShowCategories bool
	ShowAdmin      bool
}

// getOverview returns the viewer's yearly overview, computing and caching
// it when the report for that year has not been built recently.
func (s *Server) getOverview(owner string, year int, entries []core.Entry, categories []core.Category) core.Overview {
	key := s.overviewKey(owner, year)
	if ov, found := s.overviewCache.Get(key); found {
		return ov
	}
	ov := core.BuildOverview(entries, categories, year)
	s.overviewCache.Set(key, ov)
	return ov
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.loadStores(r, v.User.ID)
	entries, status := s.entries.Entries(v.User.ID)
	categories, _ := s.categories.Categories(v.User.ID)

	// The same filter pipeline as the entry list drives the detail table,
	// the CSV export link, and (through the normalized year) the overview.
	params := ParseFilterParams(r.URL.Query(), s.pageSize)
	result := core.Derive(entries, categories, params)

	ov := s.getOverview(v.User.ID, result.Params.Year, entries, categories)

	view := reportsView{
		Viewer:         v,
		Year:           ov.Year,
		Years:          core.Years(entries),
		Total:          ov.Total.Format(),
		Result:         result,
		Categories:     categories,
		Status:         status,
		ExportQuery:    FilterQuery(result.Params),
		PrevQuery:      pageQuery(result, -1),
		NextQuery:      pageQuery(result, 1),
		ShowReports:    true,
		ShowCategories: showLink(v.Roles, core.RoleCategory, s.categoryGate),
		ShowAdmin:      showLink(v.Roles, core.RoleSuperAdmin, s.adminGate),
	}

	// Widths scale against the largest slice so the bars stay readable
	// even when one category dominates.
	var maxDong int64
	for _, row := range ov.ByCategory {
		if row.Amount.Dong > maxDong {
			maxDong = row.Amount.Dong
		}
	}
	for _, row := range ov.ByCategory {
		view.Rows = append(view.Rows, reportRow{
			Name:    row.Name,
			Amount:  row.Amount.Format(),
			Percent: row.Percent,
			Width:   barWidth(row.Amount.Dong, maxDong),
		})
	}

	var maxGroupDong int64
	for _, row := range ov.ByGroup {
		if row.Amount.Dong > maxGroupDong {
			maxGroupDong = row.Amount.Dong
		}
	}
	for _, row := range ov.ByGroup {
		view.GroupRows = append(view.GroupRows, reportRow{
			Name:    row.Name,
			Amount:  row.Amount.Format(),
			Percent: row.Percent,
			Width:   barWidth(row.Amount.Dong, maxGroupDong),
		})
	}

	var maxMonth int64
	for _, m := range ov.ByMonth {
		if m.Dong > maxMonth {
			maxMonth = m.Dong
		}
	}
	for i, m := range ov.ByMonth {
		view.Months = append(view.Months, monthBar{
			Month:  i + 1,
			Amount: m.Format(),
			Width:  barWidth(m.Dong, maxMonth),
		})
	}

	if isHTMX(r) {
		s.render(w, r, "report_overview.html", view)
		return
	}
	s.render(w, r, "reports.html", view)
}

// barWidth converts an amount to a 0-100 progress width, keeping tiny
// non-zero slices visible.
func barWidth(dong, max int64) int {
	if max <= 0 || dong <= 0 {
		return 0
	}
	width := int((dong*100 + max/2) / max)
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

// handleExportCSV streams the filtered entry list as a CSV download.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	s.loadStores(r, v.User.ID)
	entries, _ := s.entries.Entries(v.User.ID)
	categories, _ := s.categories.Categories(v.User.ID)

	// Export every row matching the filters, not just the visible page.
	params := ParseFilterParams(r.URL.Query(), s.pageSize)
	params.Page = 1
	params.PageSize = len(entries)
	if params.PageSize < 1 {
		params.PageSize = 1
	}
	result := core.Derive(entries, categories, params)

	filename := "quanlychitieu-" + time.Now().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	// UTF-8 BOM so spreadsheets open Vietnamese text correctly.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return
	}

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Ngày", "Mô tả", "Số tiền (đồng)", "Danh mục", "Nhóm"})
	for _, e := range result.Items {
		record := []string{
			e.Date.Format(core.DateLayout),
			e.Description,
			strconv.FormatInt(e.Amount.Dong, 10),
			e.Category,
			core.GroupOf(e, categories),
		}
		if err := cw.Write(record); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "CSV write failed",
				"error", err, "user_id", v.User.ID)
			return
		}
	}
	cw.Flush()

	log.FromContext(r.Context()).InfoContext(r.Context(), "Entries exported",
		"user_id", v.User.ID, "rows", len(result.Items), "filename", filename)
}
