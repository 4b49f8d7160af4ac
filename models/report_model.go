package models

// CategoryTotal is the spending of one category or payment method.
type CategoryTotal struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// ExpenseSummary aggregates a traveller's non-deleted expenses.
type ExpenseSummary struct {
	Count           int             `json:"count"`
	Total           float64         `json:"total"`
	FirstDate       string          `json:"first_date,omitempty"`
	LastDate        string          `json:"last_date,omitempty"`
	ByCategory      []CategoryTotal `json:"by_category"`
	ByPaymentMethod []CategoryTotal `json:"by_payment_method"`
}

// InsightsResponse is a summary plus model-written advice.
type InsightsResponse struct {
	Summary ExpenseSummary `json:"summary"`
	Advice  string         `json:"advice"`
}
