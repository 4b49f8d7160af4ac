package utils

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"travel-expense/models"
)

const (
	MaxEmailLength = 254
	MaxLabelLength = 50
	MaxNoteLength  = 500
	MaxAmount      = 10_000_000
)

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	jsSchemePattern  = regexp.MustCompile(`(?i)javascript:`)
	eventAttrPattern = regexp.MustCompile(`(?i)on\w+=`)
	nonDigitPattern  = regexp.MustCompile(`\D`)

	earliestExpenseDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

// FieldErrors maps a request field to its validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateEmail trims and lower-cases an address and checks its shape.
func ValidateEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case email == "":
		return "", fmt.Errorf("email is required")
	case len(email) > MaxEmailLength:
		return "", fmt.Errorf("email is too long")
	case !emailPattern.MatchString(email):
		return "", fmt.Errorf("email is not a valid address")
	}
	return email, nil
}

// NormalizeVerificationCode keeps only the digits of raw; 4 to 8 must remain.
func NormalizeVerificationCode(raw string) (string, error) {
	code := nonDigitPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	if code == "" {
		return "", fmt.Errorf("verification code is required")
	}
	if len(code) < 4 || len(code) > 8 {
		return "", fmt.Errorf("verification code must be 4-8 digits")
	}
	return code, nil
}

// SanitizeText strips markup and script fragments, trims, and cuts to maxLength characters.
func SanitizeText(text string, maxLength int) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = jsSchemePattern.ReplaceAllString(text, "")
	text = eventAttrPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxLength {
		text = string([]rune(text)[:maxLength])
	}
	return text
}

// ValidateAmount accepts 0..MaxAmount with at most two decimals.
func ValidateAmount(amount *float64) error {
	switch {
	case amount == nil:
		return fmt.Errorf("amount is required")
	case math.IsNaN(*amount) || math.IsInf(*amount, 0):
		return fmt.Errorf("amount must be a number")
	case *amount < 0:
		return fmt.Errorf("amount must be 0 or greater")
	case *amount > MaxAmount:
		return fmt.Errorf("amount is too large (max 10,000,000)")
	}
	cents := *amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return fmt.Errorf("amount allows at most two decimal places")
	}
	return nil
}

// ValidateExpense checks an expense payload against now and returns the sanitised expense.
func ValidateExpense(in models.ExpenseInput, now time.Time) (models.Expense, FieldErrors) {
	errs := FieldErrors{}

	category := SanitizeText(in.Category, MaxLabelLength+1)
	switch {
	case category == "":
		errs["category"] = "category is required"
	case utf8.RuneCountInString(category) > MaxLabelLength:
		errs["category"] = "category is too long"
	}

	paymentMethod := SanitizeText(in.PaymentMethod, MaxLabelLength+1)
	switch {
	case paymentMethod == "":
		errs["paymentMethod"] = "payment method is required"
	case utf8.RuneCountInString(paymentMethod) > MaxLabelLength:
		errs["paymentMethod"] = "payment method is too long"
	}

	if err := ValidateAmount(in.Amount); err != nil {
		errs["amount"] = err.Error()
	}

	switch {
	case in.Date.IsZero():
		errs["date"] = "date is required"
	case in.Date.After(now.Add(24 * time.Hour)):
		errs["date"] = "date cannot be in the future"
	case in.Date.Before(earliestExpenseDate):
		errs["date"] = "date is too old"
	}

	if utf8.RuneCountInString(in.Note) > MaxNoteLength {
		errs["note"] = "note must be at most 500 characters"
	}

	if len(errs) > 0 {
		return models.Expense{}, errs
	}

	return models.Expense{
		Date:          in.Date,
		Category:      category,
		Amount:        math.Round(*in.Amount*100) / 100,
		PaymentMethod: paymentMethod,
		Note:          SanitizeText(in.Note, MaxNoteLength),
	}, nil
}
