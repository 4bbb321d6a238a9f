package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"iso", "2024-03-15", false},
		{"display", "15/03/2024", false},
		{"padded", "  2024-03-15 ", false},
		{"garbage", "yesterday", true},
		{"empty", "", true},
		{"impossible day", "2024-02-30", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}

func TestDateOfKeepsLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// 23:30 local on the 10th is already the 11th in UTC.
	local := time.Date(2024, 5, 10, 23, 30, 0, 0, loc)

	got := DateOf(local)
	want := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOf() = %v, want %v", got, want)
	}
}

func TestNewQuoteTimestamp(t *testing.T) {
	date := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	q := NewQuote("soja", date, decimal.NewFromInt(10), nil)

	if !q.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want midnight", q.Date)
	}
	if q.Timestamp != q.Date.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", q.Timestamp, q.Date.UnixMilli())
	}
	if !q.ChangePct.IsZero() {
		t.Errorf("ChangePct = %s, want 0", q.ChangePct)
	}
	if FormatDisplay(q.Date) != "02/01/2024" {
		t.Errorf("FormatDisplay = %q", FormatDisplay(q.Date))
	}
}
