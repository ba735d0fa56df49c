package campaign

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/db/sqlite"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
	"soliumcoin.org/airdrop-bot/internal/notify"
)

const testWallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type fakeMembers struct {
	mu      sync.Mutex
	joined  map[string]bool
	err     error
	checked int
}

func (f *fakeMembers) IsMember(_ context.Context, chat string, _ int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked++
	if f.err != nil {
		return false, f.err
	}
	return f.joined[chat], nil
}

type sentMessage struct {
	userID int64 // 0 — всем админам
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) NotifyAdmins(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{text: text})
}

func (f *fakeNotifier) NotifyUser(userID int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{userID: userID, text: text})
}

func (f *fakeNotifier) toUser(userID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.userID == userID {
			out = append(out, m.text)
		}
	}
	return out
}

type harness struct {
	engine   *Engine
	store    ledger.Store
	sessions *MemorySessions
	members  *fakeMembers
	notifier *fakeNotifier
}

func newHarness(t *testing.T, rules Rules) *harness {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "campaign.db"))
	require.NoError(t, err)
	store := ledger.NewSQLiteStore(db, ledger.DefaultRewards())
	t.Cleanup(func() { store.Close() })

	h := &harness{
		store:    store,
		sessions: NewMemorySessions(time.Minute),
		members:  &fakeMembers{joined: map[string]bool{"@group": true, "@channel": true}},
		notifier: &fakeNotifier{},
	}
	h.engine = NewEngine(h.store, h.sessions, h.members, h.notifier, Settings{
		TokenName:      "Solium",
		BotUsername:    "solium_airdrop_bot",
		GroupID:        "@group",
		ChannelID:      "@channel",
		XAccount:       "@soliumcoin",
		XPinnedPostURL: "https://x.com/soliumcoin/status/1",
		Rewards:        ledger.DefaultRewards(),
		Rules:          rules,
	})
	return h
}

func (h *harness) do(t *testing.T, userID int64, a Action) *Result {
	t.Helper()
	res := h.engine.Handle(context.Background(), Event{UserID: userID, Username: fmt.Sprintf("user%d", userID), Action: a})
	require.NotNil(t, res)
	return res
}

func (h *harness) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	rec, err := h.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return rec.Balance
}

// passAll проводит пользователя через все задания до завершения.
func (h *harness) passAll(t *testing.T, userID int64) {
	t.Helper()
	h.do(t, userID, Start{})
	for task := 1; task <= 2; task++ {
		require.Equal(t, OutcomeOK, h.do(t, userID, CompleteTask{Task: task}).Outcome, "task %d", task)
	}
	require.Equal(t, OutcomePrompt, h.do(t, userID, CompleteTask{Task: 3}).Outcome)
	require.Equal(t, OutcomeOK, h.do(t, userID, TextInput{Text: "@fan_" + fmt.Sprint(userID)}).Outcome)
	require.Equal(t, OutcomeOK, h.do(t, userID, CompleteTask{Task: 4}).Outcome)
	require.Equal(t, OutcomePrompt, h.do(t, userID, CompleteTask{Task: 5}).Outcome)
	require.Equal(t, OutcomeOK, h.do(t, userID, TextInput{Text: testWallet}).Outcome)
}

var defaultRules = Rules{Task4RequiresTask3: true}

func TestEngine_EndToEndWithoutReferrer(t *testing.T) {
	h := newHarness(t, defaultRules)
	ctx := context.Background()

	res := h.do(t, 1, Start{})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.NotEmpty(t, res.Buttons)

	stage, err := h.engine.Stage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StageTask1, stage)

	h.passAll(t, 1)

	assert.Equal(t, int64(200), h.balance(t, 1))
	stage, err = h.engine.Stage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StageParticipated, stage)

	rec, err := h.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "@fan_1", rec.XUsername)
	assert.Equal(t, testWallet, rec.WalletAddress)

	// админ получил уведомление о нике и о завершении
	assert.Len(t, h.notifier.toUser(0), 2)
}

func TestEngine_TerminalStateIsFrozen(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.passAll(t, 1)

	for _, a := range []Action{
		CompleteTask{Task: 1},
		CompleteTask{Task: 4},
		CompleteTask{Task: 5},
		CheckTasks{},
		SubmitWallet{Address: testWallet},
		SubmitHandle{Handle: "@other"},
		EnterReferral{},
		SubmitReferral{Code: "ref2"},
		ShowTasks{},
		NavigateTo{Task: 2},
		Start{},
		Start{Payload: "ref2"},
	} {
		res := h.do(t, 1, a)
		assert.Equal(t, OutcomeAlreadyParticipated, res.Outcome, "%T", a)
		assert.Equal(t, msgAlreadyParticipated, res.Text)
	}
	assert.Equal(t, int64(200), h.balance(t, 1))
}

func TestEngine_ReferralDeepLinkChain(t *testing.T) {
	h := newHarness(t, defaultRules)

	h.do(t, 10, Start{}) // B
	res := h.do(t, 20, Start{Payload: "ref10"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Text, "Реферальный код принят")
	assert.Equal(t, int64(20), h.balance(t, 10))
	assert.Equal(t, int64(20), h.balance(t, 20))

	h.passAll(t, 20)

	assert.Equal(t, int64(220), h.balance(t, 20))
	assert.Equal(t, int64(40), h.balance(t, 10), "referrer gets +40 in total")
	assert.Len(t, h.notifier.toUser(10), 2, "join and completion notifications")
}

func TestEngine_StartPayloadIgnoredForExistingUser(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 10, Start{})
	h.do(t, 20, Start{})

	res := h.do(t, 20, Start{Payload: "ref10"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Zero(t, h.balance(t, 10))
	assert.Zero(t, h.balance(t, 20))
}

func TestEngine_StartWithSelfReferral(t *testing.T) {
	h := newHarness(t, defaultRules)

	res := h.do(t, 5, Start{Payload: "ref5"})
	assert.Equal(t, OutcomeValidation, res.Outcome)
	assert.Contains(t, res.Text, msgSelfReferral)
	assert.Zero(t, h.balance(t, 5))
}

func TestEngine_ReferralEntryErrors(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})
	h.do(t, 2, Start{})

	res := h.do(t, 2, EnterReferral{})
	assert.Equal(t, OutcomePrompt, res.Outcome)

	tests := []struct {
		code    string
		outcome Outcome
		text    string
	}{
		{"hello", OutcomeValidation, msgBadReferral},
		{"ref2", OutcomeValidation, msgSelfReferral},
		{"ref999", OutcomeNotFound, msgReferrerNotFound},
	}
	for _, tt := range tests {
		res := h.do(t, 2, TextInput{Text: tt.code})
		assert.Equal(t, tt.outcome, res.Outcome, tt.code)
		assert.Equal(t, tt.text, res.Text, tt.code)
	}

	res = h.do(t, 2, TextInput{Text: "ref1"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int64(20), h.balance(t, 1))

	res = h.do(t, 2, EnterReferral{})
	assert.Equal(t, OutcomeConflict, res.Outcome)
	res = h.do(t, 2, SubmitReferral{Code: "ref1"})
	assert.Equal(t, OutcomeConflict, res.Outcome)
	assert.Equal(t, int64(20), h.balance(t, 1), "second link must not pay")
}

func TestEngine_MembershipChecks(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})

	h.members.err = errors.New("telegram timeout")
	res := h.do(t, 1, CompleteTask{Task: 1})
	assert.Equal(t, OutcomeRetry, res.Outcome)
	assert.Zero(t, h.balance(t, 1))

	h.members.err = nil
	h.members.joined["@group"] = false
	res = h.do(t, 1, CompleteTask{Task: 1})
	assert.Equal(t, OutcomeNotMember, res.Outcome)
	assert.Zero(t, h.balance(t, 1))

	h.members.joined["@group"] = true
	res = h.do(t, 1, CompleteTask{Task: 1})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int64(20), h.balance(t, 1))

	res = h.do(t, 1, CompleteTask{Task: 1})
	assert.Equal(t, OutcomeAlreadyDone, res.Outcome)
	assert.Equal(t, int64(20), h.balance(t, 1))
}

func TestEngine_Task4Gating(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})

	res := h.do(t, 1, CompleteTask{Task: 4})
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Equal(t, msgTask4Locked, res.Text)

	open := newHarness(t, Rules{})
	open.do(t, 1, Start{})
	res = open.do(t, 1, CompleteTask{Task: 4})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int64(20), open.balance(t, 1))
}

func TestEngine_StrictOrder(t *testing.T) {
	h := newHarness(t, Rules{StrictOrder: true})
	h.do(t, 1, Start{})

	res := h.do(t, 1, CompleteTask{Task: 2})
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Equal(t, msgStrictLocked, res.Text)
	assert.Zero(t, h.members.checked, "locked task must not hit Telegram")

	require.Equal(t, OutcomeOK, h.do(t, 1, CompleteTask{Task: 1}).Outcome)
	assert.Equal(t, OutcomeOK, h.do(t, 1, CompleteTask{Task: 2}).Outcome)
}

func TestEngine_NavigationNeverRewards(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})

	for task := 1; task <= ledger.TaskCount; task++ {
		res := h.do(t, 1, NavigateTo{Task: task})
		assert.Equal(t, OutcomeOK, res.Outcome)
		assert.True(t, res.Edit)
	}
	assert.Equal(t, OutcomeValidation, h.do(t, 1, NavigateTo{Task: 9}).Outcome)
	assert.Zero(t, h.balance(t, 1))
	assert.Zero(t, h.members.checked)
}

func TestEngine_WalletRequiresTasks(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})

	res := h.do(t, 1, CompleteTask{Task: 5})
	assert.Equal(t, OutcomeLocked, res.Outcome)

	res = h.do(t, 1, SubmitWallet{Address: testWallet})
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Zero(t, h.balance(t, 1))
}

func TestEngine_InvalidInputKeepsPending(t *testing.T) {
	h := newHarness(t, defaultRules)
	ctx := context.Background()
	h.do(t, 1, Start{})

	require.Equal(t, OutcomePrompt, h.do(t, 1, CompleteTask{Task: 3}).Outcome)
	res := h.do(t, 1, TextInput{Text: "no_at_sign"})
	assert.Equal(t, OutcomeValidation, res.Outcome)
	assert.Equal(t, msgBadHandle, res.Text)

	pending, err := h.sessions.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, PendingXHandle, pending)

	require.Equal(t, OutcomeOK, h.do(t, 1, TextInput{Text: "@good_name"}).Outcome)
	pending, err = h.sessions.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, PendingNone, pending)

	for task := 1; task <= 2; task++ {
		h.do(t, 1, CompleteTask{Task: task})
	}
	h.do(t, 1, CompleteTask{Task: 4})
	require.Equal(t, OutcomePrompt, h.do(t, 1, CompleteTask{Task: 5}).Outcome)

	stage, err := h.engine.Stage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingWallet, stage)

	res = h.do(t, 1, TextInput{Text: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA"})
	assert.Equal(t, OutcomeValidation, res.Outcome)
	assert.Equal(t, msgBadWallet, res.Text)
	assert.Equal(t, int64(80), h.balance(t, 1))

	res = h.do(t, 1, TextInput{Text: testWallet})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int64(200), h.balance(t, 1))
}

func TestEngine_WalletMixedCaseStoredAsChecksum(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})
	for task := 1; task <= 4; task++ {
		h.do(t, 1, CompleteTask{Task: task})
		if task == TaskFollowX {
			h.do(t, 1, TextInput{Text: "@fan"})
		}
	}
	require.Equal(t, int64(80), h.balance(t, 1))

	// регистр одной буквы изменён: формат верный, checksum — нет
	res := h.do(t, 1, SubmitWallet{Address: "0x71c7656EC7ab88b098defB751B7401B5f6d8976F"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int64(200), h.balance(t, 1))

	rec, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", rec.WalletAddress)
}

func TestEngine_EventsBeforeStart(t *testing.T) {
	h := newHarness(t, defaultRules)
	ctx := context.Background()

	for _, a := range []Action{
		SubmitWallet{Address: testWallet},
		CompleteTask{Task: 1},
		CheckTasks{},
		ShowBalance{},
		ShowTasks{},
		ShowReferral{},
		EnterReferral{},
		TextInput{Text: "hello"},
	} {
		res := h.do(t, 777, a)
		assert.Equal(t, OutcomeNotFound, res.Outcome, "%T", a)
		assert.Equal(t, msgPressStart, res.Text)
	}

	_, err := h.store.Get(ctx, 777)
	assert.ErrorIs(t, err, common.ErrUserNotFound, "no record before /start")
	assert.Zero(t, h.members.checked)

	// статические экраны доступны и без записи
	assert.Equal(t, OutcomeOK, h.do(t, 777, ShowMenu{}).Outcome)
	assert.Equal(t, OutcomeOK, h.do(t, 777, ShowTerms{}).Outcome)

	assert.Equal(t, OutcomeOK, h.do(t, 777, Start{}).Outcome)
	_, err = h.store.Get(ctx, 777)
	assert.NoError(t, err)
}

func TestEngine_HandleTooLong(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})
	require.Equal(t, OutcomePrompt, h.do(t, 1, CompleteTask{Task: 3}).Outcome)

	res := h.do(t, 1, TextInput{Text: "@" + strings.Repeat("a", 65)})
	assert.Equal(t, OutcomeValidation, res.Outcome)
	assert.Equal(t, msgBadHandle, res.Text)
	assert.Zero(t, h.balance(t, 1))

	res = h.do(t, 1, TextInput{Text: "@" + strings.Repeat("a", 15)})
	assert.Equal(t, OutcomeOK, res.Outcome)
}

func TestEngine_TextWithoutPending(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})

	res := h.do(t, 1, TextInput{Text: testWallet})
	assert.Equal(t, OutcomeValidation, res.Outcome)
	assert.Equal(t, msgUseMenu, res.Text)
	assert.Zero(t, h.balance(t, 1))
}

func TestEngine_CheckTasks(t *testing.T) {
	h := newHarness(t, defaultRules)
	ctx := context.Background()
	h.do(t, 1, Start{})
	h.do(t, 1, CompleteTask{Task: 1})

	res := h.do(t, 1, CheckTasks{})
	assert.Equal(t, OutcomeLocked, res.Outcome)
	assert.Contains(t, res.Text, taskTitle(2))
	assert.NotContains(t, res.Text, taskTitle(1))

	h.do(t, 1, CompleteTask{Task: 2})
	h.do(t, 1, CompleteTask{Task: 3})
	h.do(t, 1, TextInput{Text: "@handle"})
	h.do(t, 1, CompleteTask{Task: 4})

	res = h.do(t, 1, CheckTasks{})
	assert.Equal(t, OutcomePrompt, res.Outcome)
	assert.Equal(t, msgAskWallet, res.Text)

	// все пять флагов без кошелька: завершение через SetParticipated
	_, err := h.store.SetTaskFlag(ctx, 1, ledger.TaskUpdate{Task: 5})
	require.NoError(t, err)
	res = h.do(t, 1, CheckTasks{})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, int64(200), h.balance(t, 1))
}

func TestEngine_ReferralScreen(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 42, Start{})

	res := h.do(t, 42, ShowReferral{})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Text, "https://t.me/solium_airdrop_bot?start=ref42")
	require.NotEmpty(t, res.Photo)
	assert.Equal(t, []byte("\x89PNG"), res.Photo[:4])
	assert.Equal(t, mustCallback(EnterReferral{}), res.Buttons[0][0].Data)
}

func TestEngine_HistoryAndBalance(t *testing.T) {
	h := newHarness(t, defaultRules)
	h.do(t, 1, Start{})

	res := h.do(t, 1, ShowHistory{})
	assert.Equal(t, msgNoHistory, res.Text)

	h.do(t, 1, CompleteTask{Task: 1})
	res = h.do(t, 1, ShowHistory{})
	assert.Contains(t, res.Text, "+20 Solium")
	assert.Contains(t, res.Text, "Задание 1")

	res = h.do(t, 1, ShowBalance{})
	assert.Contains(t, res.Text, "20 Solium")
}

type failingSender struct{ calls atomic.Int32 }

func (f *failingSender) SendText(context.Context, int64, string) error {
	f.calls.Add(1)
	return errors.New("Forbidden: bot was blocked by the user")
}

func TestEngine_NotificationFailureKeepsRewards(t *testing.T) {
	h := newHarness(t, defaultRules)
	sender := &failingSender{}
	n := notify.New(sender, []int64{999}, time.Second)
	h.engine.notifier = n

	h.do(t, 10, Start{})
	h.do(t, 20, Start{Payload: "ref10"})
	h.passAll(t, 20)
	n.Wait()

	assert.Positive(t, sender.calls.Load())
	assert.Equal(t, int64(220), h.balance(t, 20))
	assert.Equal(t, int64(40), h.balance(t, 10))
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, StageNotStarted, StageOf(nil, PendingNone))
	assert.Equal(t, StageTask1, StageOf(&ledger.Record{CurrentTask: 1}, PendingNone))
	assert.Equal(t, StageTask5, StageOf(&ledger.Record{CurrentTask: 5}, PendingNone))
	assert.Equal(t, StageAwaitingWallet, StageOf(&ledger.Record{CurrentTask: 5}, PendingWallet))
	assert.Equal(t, StageParticipated, StageOf(&ledger.Record{CurrentTask: 6, Participated: true}, PendingNone))
}
