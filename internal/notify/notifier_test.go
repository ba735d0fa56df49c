package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingSender struct {
	mu     sync.Mutex
	got    []int64
	failOn map[int64]bool
	block  bool
}

func (s *recordingSender) SendText(ctx context.Context, chatID int64, _ string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	s.got = append(s.got, chatID)
	return nil
}

func TestNotifier_AdminsAndUsers(t *testing.T) {
	s := &recordingSender{failOn: map[int64]bool{2: true}}
	n := New(s, []int64{1, 2, 3}, time.Second)

	n.NotifyAdmins("hello")
	n.NotifyUser(10, "hi")
	n.Wait()

	sort.Slice(s.got, func(i, j int) bool { return s.got[i] < s.got[j] })
	assert.Equal(t, []int64{1, 3, 10}, s.got, "failed delivery does not stop the rest")
}

func TestNotifier_Timeout(t *testing.T) {
	s := &recordingSender{block: true}
	n := New(s, nil, 20*time.Millisecond)

	start := time.Now()
	n.NotifyUser(1, "slow")
	n.Wait()
	assert.Less(t, time.Since(start), time.Second)
}

type panicSender struct{}

func (panicSender) SendText(context.Context, int64, string) error { panic("boom") }

func TestNotifier_RecoversPanic(t *testing.T) {
	n := New(panicSender{}, []int64{1}, time.Second)
	assert.NotPanics(t, func() {
		n.NotifyAdmins("x")
		n.Wait()
	})
}
