package utils

import (
	"math"
	"sort"

	"travel-expense/models"
)

// Summarize totals expenses overall, per category and per payment method.
// Groups are ordered by amount, largest first.
func Summarize(expenses []models.Expense) models.ExpenseSummary {
	summary := models.ExpenseSummary{
		ByCategory:      []models.CategoryTotal{},
		ByPaymentMethod: []models.CategoryTotal{},
	}
	if len(expenses) == 0 {
		return summary
	}

	byCategory := map[string]*models.CategoryTotal{}
	byPayment := map[string]*models.CategoryTotal{}
	first, last := expenses[0].Date, expenses[0].Date

	for _, e := range expenses {
		summary.Count++
		summary.Total += e.Amount
		add(byCategory, e.Category, e.Amount)
		add(byPayment, e.PaymentMethod, e.Amount)
		if e.Date.Before(first.Time) {
			first = e.Date
		}
		if e.Date.After(last.Time) {
			last = e.Date
		}
	}

	summary.Total = roundCents(summary.Total)
	summary.FirstDate = first.String()
	summary.LastDate = last.String()
	summary.ByCategory = sortedTotals(byCategory)
	summary.ByPaymentMethod = sortedTotals(byPayment)
	return summary
}

func add(groups map[string]*models.CategoryTotal, name string, amount float64) {
	g, ok := groups[name]
	if !ok {
		g = &models.CategoryTotal{Name: name}
		groups[name] = g
	}
	g.Count++
	g.Amount += amount
}

func sortedTotals(groups map[string]*models.CategoryTotal) []models.CategoryTotal {
	out := make([]models.CategoryTotal, 0, len(groups))
	for _, g := range groups {
		g.Amount = roundCents(g.Amount)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
