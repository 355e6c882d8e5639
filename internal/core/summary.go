package core

import "sort"

type (
	// CategoryAmount is an amount aggregated by category name with its
	// share of the report total.
	CategoryAmount struct {
		Name    string
		Amount  Money
		Percent int // rounded share of the total, 0 when the total is 0
	}

	// GroupAmount is an amount aggregated by category group.
	GroupAmount struct {
		Name    string
		Amount  Money
		Percent int
	}

	// Overview is the report over a derived entry set: the grand total,
	// category and group breakdowns, and per-month totals for the year.
	Overview struct {
		Year       int
		Total      Money
		ByCategory []CategoryAmount
		ByGroup    []GroupAmount
		ByMonth    [12]Money // index 0 is January
	}
)

// Total sums the amounts of the given entries.
func Total(entries []Entry) Money {
	var sum int64
	for _, e := range entries {
		sum += e.Amount.Dong
	}
	return Money{Dong: sum}
}

// percentOf rounds amount/total to the nearest whole percent, half away
// from zero. Amounts are non-negative so half-up suffices.
func percentOf(amount, total int64) int {
	if total == 0 {
		return 0
	}
	return int((amount*100 + total/2) / total)
}

// CategoryBreakdown aggregates entries by category name, largest first.
func CategoryBreakdown(entries []Entry) []CategoryAmount {
	sums := make(map[string]int64)
	var order []string
	for _, e := range entries {
		if _, ok := sums[e.Category]; !ok {
			order = append(order, e.Category)
		}
		sums[e.Category] += e.Amount.Dong
	}
	total := Total(entries).Dong
	out := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		out = append(out, CategoryAmount{
			Name:    name,
			Amount:  Money{Dong: sums[name]},
			Percent: percentOf(sums[name], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Dong > out[j].Amount.Dong
	})
	return out
}

// GroupBreakdown aggregates entries by category group, largest first.
// Entries without a grouped category land in GroupOther.
func GroupBreakdown(entries []Entry, categories []Category) []GroupAmount {
	sums := make(map[string]int64)
	var order []string
	for _, e := range entries {
		g := GroupOf(e, categories)
		if _, ok := sums[g]; !ok {
			order = append(order, g)
		}
		sums[g] += e.Amount.Dong
	}
	total := Total(entries).Dong
	out := make([]GroupAmount, 0, len(order))
	for _, name := range order {
		out = append(out, GroupAmount{
			Name:    name,
			Amount:  Money{Dong: sums[name]},
			Percent: percentOf(sums[name], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Dong > out[j].Amount.Dong
	})
	return out
}

// MonthlyTotals sums per month over the whole year, ignoring entries from
// other years.
func MonthlyTotals(entries []Entry, year int) [12]Money {
	var out [12]Money
	for _, e := range entries {
		if e.Year() != year {
			continue
		}
		out[e.Month()-1].Dong += e.Amount.Dong
	}
	return out
}

// BuildOverview assembles the full report for one year.
func BuildOverview(entries []Entry, categories []Category, year int) Overview {
	scoped := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Year() == year {
			scoped = append(scoped, e)
		}
	}
	return Overview{
		Year:       year,
		Total:      Total(scoped),
		ByCategory: CategoryBreakdown(scoped),
		ByGroup:    GroupBreakdown(scoped, categories),
		ByMonth:    MonthlyTotals(entries, year),
	}
}
