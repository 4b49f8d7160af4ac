package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseDateJSON(t *testing.T) {
	var in ExpenseInput
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-01-15 14:30","category":"숙박","amount":15000,"paymentMethod":"신용카드"}`), &in))
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), in.Date.Time)
	require.NotNil(t, in.Amount)
	assert.Equal(t, 15000.0, *in.Amount)

	out, err := json.Marshal(Expense{ID: 3, Date: in.Date})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"date":"2024-01-15 14:30"`)
	assert.Contains(t, string(out), `"paymentMethod":""`)
}

func TestParseExpenseDateLayouts(t *testing.T) {
	for _, s := range []string{"2024-01-15 10:00", "2024-01-15T10:00:45Z", "2024-01-15T10:00"} {
		d, err := ParseExpenseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, "2024-01-15 10:00", d.String(), s)
	}

	d, err := ParseExpenseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15 00:00", d.String())

	_, err = ParseExpenseDate("yesterday")
	assert.Error(t, err)

	var in ExpenseInput
	assert.Error(t, json.Unmarshal([]byte(`{"date":12}`), &in))
	require.NoError(t, json.Unmarshal([]byte(`{"date":""}`), &in))
	assert.True(t, in.Date.IsZero())
}

func TestPublicHidesOwner(t *testing.T) {
	e := Expense{ID: 1, UserID: 9}
	out, err := json.Marshal(e.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "user_id")
	assert.Equal(t, int64(9), e.UserID)
}

func TestDefaultUserName(t *testing.T) {
	assert.Equal(t, "kim", DefaultUserName("kim@example.com"))
	assert.Equal(t, "nobody", DefaultUserName("nobody"))
}
