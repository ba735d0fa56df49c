package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReporter struct {
	text string
	err  error
}

func (f *fakeReporter) DailyReport(context.Context) (string, error) {
	return f.text, f.err
}

type fakePurger struct{ calls int }

func (f *fakePurger) Purge() int {
	f.calls++
	return 2
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(time.UTC, "not a cron", &fakeReporter{}, nil, func(string) {})
	assert.Error(t, err)
}

func TestScheduler_Entries(t *testing.T) {
	tests := []struct {
		name   string
		purger Purger
		want   int
	}{
		{"report only", nil, 1},
		{"report and purge", &fakePurger{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(time.UTC, "0 9 * * *", &fakeReporter{}, tt.purger, func(string) {})
			require.NoError(t, err)
			require.NoError(t, s.Start(context.Background()))
			defer s.Stop()
			assert.Equal(t, tt.want, s.Entries())
		})
	}
}

func TestRunReport(t *testing.T) {
	var sent []string
	send := func(text string) { sent = append(sent, text) }

	s, err := NewScheduler(time.UTC, "0 9 * * *", &fakeReporter{text: "отчёт"}, nil, send)
	require.NoError(t, err)
	s.RunReport(context.Background())
	assert.Equal(t, []string{"отчёт"}, sent)

	s, err = NewScheduler(time.UTC, "0 9 * * *", &fakeReporter{err: errors.New("db down")}, nil, send)
	require.NoError(t, err)
	s.RunReport(context.Background())
	assert.Len(t, sent, 1)
}

func TestRunPurge(t *testing.T) {
	p := &fakePurger{}
	s, err := NewScheduler(nil, "@daily", &fakeReporter{}, p, func(string) {})
	require.NoError(t, err)

	s.RunPurge()
	assert.Equal(t, 1, p.calls)
}
