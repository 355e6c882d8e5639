package core

import (
	"sort"
	"strings"
	"time"
)

// MonthAll selects every month of the chosen year.
const MonthAll = "all"

// GroupOther is the bucket for entries whose category carries no group.
const GroupOther = "Khác"

// Sort orders for the derived view. Date descending is the default.
const (
	SortDateDesc   = "date_desc"
	SortDateAsc    = "date_asc"
	SortAmountDesc = "amount_desc"
	SortAmountAsc  = "amount_asc"
)

type (
	// FilterParams is the full view state of the entry list. Zero values
	// mean "no constraint" except Year, which Derive normalizes to a year
	// actually present in the data.
	FilterParams struct {
		Year     int
		Month    string // MonthAll or "1".."12"
		Category string
		Group    string
		Search   string
		From     time.Time
		To       time.Time
		MinSet   bool
		Min      Money
		MaxSet   bool
		Max      Money
		Sort     string
		Page     int
		PageSize int
	}

	// DeriveResult carries one page of entries plus the normalized params.
	// Callers must persist the returned params: stale selections (a year or
	// page that no longer exists) are reset here, not at the call site.
	DeriveResult struct {
		Items      []Entry
		TotalCount int
		TotalPages int
		Params     FilterParams
	}
)

// Years lists the distinct entry years, most recent first.
func Years(entries []Entry) []int {
	seen := make(map[int]bool)
	var years []int
	for _, e := range entries {
		y := e.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// GroupOf resolves an entry's group through the category list. Categories
// without a group, and entries whose category no longer exists, fall into
// GroupOther.
func GroupOf(entry Entry, categories []Category) string {
	for _, c := range categories {
		if c.Name == entry.Category {
			if strings.TrimSpace(c.Group) == "" {
				return GroupOther
			}
			return c.Group
		}
	}
	return GroupOther
}

// Derive runs the view pipeline over the owner's full entry list: year and
// month scoping, category, group, text search, date range, amount bounds,
// sort, then pagination. Filter steps never mutate the input slice.
func Derive(entries []Entry, categories []Category, p FilterParams) DeriveResult {
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	if p.Month == "" {
		p.Month = MonthAll
	}
	if p.Sort == "" {
		p.Sort = SortDateDesc
	}

	years := Years(entries)
	if !containsInt(years, p.Year) {
		// Stale year selection. Fall back to the most recent year present
		// and drop the narrower selections that depended on it.
		if len(years) > 0 {
			p.Year = years[0]
		} else {
			p.Year = time.Now().Year()
		}
		p.Month = MonthAll
		p.Category = ""
		p.Group = ""
	}

	scoped := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Year() == p.Year {
			scoped = append(scoped, e)
		}
	}

	if p.Month != MonthAll {
		m := monthNumber(p.Month)
		if m == 0 || !hasMonth(scoped, m) {
			p.Month = MonthAll
		} else {
			scoped = filterEntries(scoped, func(e Entry) bool { return e.Month() == m })
		}
	}

	if p.Category != "" {
		scoped = filterEntries(scoped, func(e Entry) bool { return e.Category == p.Category })
	}

	if p.Group != "" {
		scoped = filterEntries(scoped, func(e Entry) bool { return GroupOf(e, categories) == p.Group })
	}

	if q := strings.TrimSpace(p.Search); q != "" {
		lq := strings.ToLower(q)
		scoped = filterEntries(scoped, func(e Entry) bool {
			return strings.Contains(strings.ToLower(e.Description), lq)
		})
	}

	if !p.From.IsZero() {
		scoped = filterEntries(scoped, func(e Entry) bool { return !e.Date.Before(p.From) })
	}
	if !p.To.IsZero() {
		// Inclusive upper bound at day resolution.
		end := p.To.AddDate(0, 0, 1)
		scoped = filterEntries(scoped, func(e Entry) bool { return e.Date.Before(end) })
	}

	if p.MinSet {
		scoped = filterEntries(scoped, func(e Entry) bool { return e.Amount.Dong >= p.Min.Dong })
	}
	if p.MaxSet {
		scoped = filterEntries(scoped, func(e Entry) bool { return e.Amount.Dong <= p.Max.Dong })
	}

	sortEntries(scoped, p.Sort)

	total := len(scoped)
	totalPages := (total + p.PageSize - 1) / p.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if p.Page < 1 || p.Page > totalPages {
		p.Page = 1
	}
	start := (p.Page - 1) * p.PageSize
	end := start + p.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return DeriveResult{
		Items:      scoped[start:end],
		TotalCount: total,
		TotalPages: totalPages,
		Params:     p,
	}
}

func filterEntries(entries []Entry, keep func(Entry) bool) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func sortEntries(entries []Entry, order string) {
	sort.SliceStable(entries, func(i, j int) bool {
		switch order {
		case SortDateAsc:
			return entries[i].Date.Before(entries[j].Date)
		case SortAmountDesc:
			return entries[i].Amount.Dong > entries[j].Amount.Dong
		case SortAmountAsc:
			return entries[i].Amount.Dong < entries[j].Amount.Dong
		default:
			return entries[i].Date.After(entries[j].Date)
		}
	})
}

func monthNumber(s string) int {
	switch s {
	case "1", "01":
		return 1
	case "2", "02":
		return 2
	case "3", "03":
		return 3
	case "4", "04":
		return 4
	case "5", "05":
		return 5
	case "6", "06":
		return 6
	case "7", "07":
		return 7
	case "8", "08":
		return 8
	case "9", "09":
		return 9
	case "10":
		return 10
	case "11":
		return 11
	case "12":
		return 12
	}
	return 0
}

func hasMonth(entries []Entry, m int) bool {
	for _, e := range entries {
		if e.Month() == m {
			return true
		}
	}
	return false
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
