package ledger

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/models"
)

const monthLayout = "2006-01"

// MemberBalance is a member's current balance.
type MemberBalance struct {
	MemberID string
	Name     string
	Balance  decimal.Decimal
}

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
	Category models.Category
	Total    decimal.Decimal
}

// MonthTotal is the amount spent in one calendar month, keyed as YYYY-MM.
type MonthTotal struct {
	Month string
	Total decimal.Decimal
}

// Stats summarizes a group's spending.
type Stats struct {
	Total    decimal.Decimal
	Balances []MemberBalance
	// Categories has one entry per models.Categories, in that order.
	Categories []CategoryTotal
	// Months is sorted by month and skips expenses without a date.
	Months []MonthTotal
}

// ComputeStats derives member balances, per-category totals and monthly
// totals from a group's expenses. Expenses with an unknown category count
// as other.
func ComputeStats(group *models.Group) Stats {
	stats := Stats{
		Total:      decimal.Zero,
		Balances:   make([]MemberBalance, 0, len(group.Members)),
		Categories: make([]CategoryTotal, len(models.Categories)),
	}
	for _, m := range group.Members {
		stats.Balances = append(stats.Balances, MemberBalance{MemberID: m.ID, Name: m.Name, Balance: m.Balance})
	}
	for i, c := range models.Categories {
		stats.Categories[i] = CategoryTotal{Category: c, Total: decimal.Zero}
	}

	months := make(map[string]decimal.Decimal)
	for _, e := range group.Expenses {
		stats.Total = stats.Total.Add(e.Amount)

		category := e.Category
		if !category.Valid() {
			category = models.CategoryOther
		}
		i := slices.Index(models.Categories, category)
		stats.Categories[i].Total = stats.Categories[i].Total.Add(e.Amount)

		if e.Date.IsZero() {
			continue
		}
		key := e.Date.UTC().Format(monthLayout)
		months[key] = months[key].Add(e.Amount)
	}

	stats.Months = make([]MonthTotal, 0, len(months))
	for _, key := range slices.Sorted(maps.Keys(months)) {
		stats.Months = append(stats.Months, MonthTotal{Month: key, Total: months[key]})
	}
	return stats
}
