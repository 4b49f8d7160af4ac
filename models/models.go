package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// --- Custom date type ---

// DateLayout is the wire and display format of an expense date.
const DateLayout = "2006-01-02 15:04"

// ExpenseDate is the moment an expense was made, minute precision, serialised as "YYYY-MM-DD HH:MM".
type ExpenseDate struct {
	time.Time
}

// NewExpenseDate truncates t to the minute.
func NewExpenseDate(t time.Time) ExpenseDate {
	return ExpenseDate{Time: t.Truncate(time.Minute)}
}

// ParseExpenseDate accepts the display layout, RFC 3339, or a plain date.
func ParseExpenseDate(s string) (ExpenseDate, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewExpenseDate(t), nil
		}
	}
	return ExpenseDate{}, fmt.Errorf("invalid date %q", s)
}

func (d ExpenseDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d ExpenseDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *ExpenseDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("date must be a string")
	}
	if strings.TrimSpace(s) == "" {
		*d = ExpenseDate{}
		return nil
	}
	parsed, err := ParseExpenseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// --- JWT & Auth ---

type JwtClaims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type VerificationRequest struct {
	Email string `json:"email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// --- Core Models ---

// Expense is one spending record. Deleted expenses stay stored with IsDeleted set.
type Expense struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"user_id,omitempty"`
	Date          ExpenseDate `json:"date"`
	Category      string      `json:"category"`
	Amount        float64     `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
	Note          string      `json:"note"`
	IsDeleted     bool        `json:"is_deleted"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Public strips the owner from an expense shown in the shared feed.
func (e Expense) Public() Expense {
	e.UserID = 0
	return e
}

// ExpenseInput is the editable part of an expense, used for create and update.
type ExpenseInput struct {
	Date          ExpenseDate `json:"date"`
	Category      string      `json:"category"`
	Amount        *float64    `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
	Note          string      `json:"note"`
}

// Known expense categories. Other values are accepted.
const (
	CategoryAccommodation  = "숙박"
	CategoryTransportation = "교통"
	CategoryFood           = "식비"
	CategoryEntertainment  = "입장료"
	CategoryShopping       = "쇼핑"
	CategoryOther          = "기타"
)

// Known payment methods. Other values are accepted.
const (
	PaymentCreditCard = "신용카드"
	PaymentCash       = "현금"
	PaymentOnline     = "온라인결제"
	PaymentDebitCard  = "체크카드"
	PaymentMobile     = "모바일결제"
)

var ExpenseCategories = []string{
	CategoryAccommodation, CategoryTransportation, CategoryFood,
	CategoryEntertainment, CategoryShopping, CategoryOther,
}

var PaymentMethods = []string{
	PaymentCreditCard, PaymentCash, PaymentOnline, PaymentDebitCard, PaymentMobile,
}
