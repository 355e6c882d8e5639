// This file parses and validates request data: the entry list view state
// from query parameters and the entry/category mutation forms.
package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chitieu/internal/core"
)

// ParseFilterParams extracts the entry list view state from query values.
// Unknown or malformed values fall back to the zero value so Derive can
// normalize them against the real data.
func ParseFilterParams(query url.Values, defaultPageSize int) core.FilterParams {
	p := core.FilterParams{
		Month:    core.MonthAll,
		Sort:     core.SortDateDesc,
		Page:     1,
		PageSize: defaultPageSize,
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			p.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		p.Month = v
	}
	p.Category = sanitizeInput(query.Get("category"))
	p.Group = sanitizeInput(query.Get("group"))
	p.Search = sanitizeInput(query.Get("q"))

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if d, err := time.Parse(core.DateLayout, v); err == nil {
			p.From = d
		}
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if d, err := time.Parse(core.DateLayout, v); err == nil {
			p.To = d
		}
	}

	if v := strings.TrimSpace(query.Get("min")); v != "" {
		if m, err := core.ParseAmount(v); err == nil {
			p.MinSet = true
			p.Min = m
		}
	}
	if v := strings.TrimSpace(query.Get("max")); v != "" {
		if m, err := core.ParseAmount(v); err == nil {
			p.MaxSet = true
			p.Max = m
		}
	}

	switch v := strings.TrimSpace(query.Get("sort")); v {
	case core.SortDateAsc, core.SortAmountDesc, core.SortAmountAsc:
		p.Sort = v
	}

	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}

	return p
}

// FilterQuery serializes params back into a query string so pagination and
// sort links can round-trip the current view state.
func FilterQuery(p core.FilterParams) string {
	q := url.Values{}
	if p.Year != 0 {
		q.Set("year", strconv.Itoa(p.Year))
	}
	if p.Month != "" && p.Month != core.MonthAll {
		q.Set("month", p.Month)
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Group != "" {
		q.Set("group", p.Group)
	}
	if p.Search != "" {
		q.Set("q", p.Search)
	}
	if !p.From.IsZero() {
		q.Set("from", p.From.Format(core.DateLayout))
	}
	if !p.To.IsZero() {
		q.Set("to", p.To.Format(core.DateLayout))
	}
	if p.MinSet {
		q.Set("min", strconv.FormatInt(p.Min.Dong, 10))
	}
	if p.MaxSet {
		q.Set("max", strconv.FormatInt(p.Max.Dong, 10))
	}
	if p.Sort != "" && p.Sort != core.SortDateDesc {
		q.Set("sort", p.Sort)
	}
	if p.Page > 1 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	return q.Encode()
}

// ParseEntryForm builds an entry from form values. The date defaults to now
// when absent; validation is left to Entry.Validate.
func ParseEntryForm(form url.Values, owner string) (core.Entry, error) {
	e := core.Entry{
		Owner:       owner,
		Category:    sanitizeInput(form.Get("category")),
		Description: sanitizeInput(form.Get("description")),
		Date:        time.Now(),
	}

	if v := strings.TrimSpace(form.Get("date")); v != "" {
		d, err := core.ParseEntryDate(v)
		if err != nil {
			return core.Entry{}, core.ErrInvalidDate
		}
		e.Date = d
	}

	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return core.Entry{}, err
	}
	e.Amount = amount

	if v := strings.TrimSpace(form.Get("id")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			e.ID = id
		}
	}

	return e, nil
}

// ParseCategoryForm builds a category from form values.
func ParseCategoryForm(form url.Values, owner string) core.Category {
	c := core.Category{
		Owner: owner,
		Name:  sanitizeInput(form.Get("name")),
		Group: sanitizeInput(form.Get("group")),
	}
	if v := strings.TrimSpace(form.Get("id")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ID = id
		}
	}
	return c
}

// ParseID extracts a positive integer id from a form or query value.
func ParseID(v string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	return id, err == nil && id > 0
}

// Confirmed reports whether the form carries an explicit confirmation flag.
func Confirmed(form url.Values) bool {
	v := strings.TrimSpace(form.Get("confirm"))
	return v == "true" || v == "1" || v == "on"
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on
// failure. Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Yêu cầu không hợp lệ")
	}
	return nil
}
