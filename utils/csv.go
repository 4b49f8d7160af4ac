package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"travel-expense/models"
)

// utf8BOM lets spreadsheet software detect UTF-8 so Korean text is not garbled.
const utf8BOM = "\ufeff"

var csvHeader = []string{"date", "category", "amount", "paymentMethod", "note"}

// BuildExpensesCSV renders expenses as a CSV document prefixed with a UTF-8 BOM.
func BuildExpensesCSV(expenses []models.Expense) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		record := []string{
			e.Date.String(),
			e.Category,
			strconv.FormatFloat(e.Amount, 'f', -1, 64),
			e.PaymentMethod,
			e.Note,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
