package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{20, "20"},
		{999, "999"},
		{1000, "1 000"},
		{2350, "2 350"},
		{1234567, "1 234 567"},
		{-4020, "-4 020"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "FormatNumber(%d)", tt.in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "+20 Solium", FormatAmount(20, "Solium"))
	assert.Equal(t, "-1 500 Solium", FormatAmount(-1500, "Solium"))
	assert.Equal(t, "1 250 Solium", FormatBalance(1250, "Solium"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "прив...", Truncate("привет", 4))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)
	assert.Equal(t, "01.03.2026 21:30", FormatDateTime(ts, nil))

	loc := time.FixedZone("MSK", 3*60*60)
	assert.Equal(t, "02.03.2026 00:30", FormatDateTime(ts, loc))
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Invalid"))
}
