package admin

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soliumcoin.org/airdrop-bot/internal/db/sqlite"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

const adminID = 1

type sentDoc struct {
	chatID  int64
	name    string
	data    []byte
	caption string
}

type fakeSender struct {
	mu    sync.Mutex
	texts map[int64][]string
	docs  []sentDoc
	err   error
}

func newFakeSender() *fakeSender {
	return &fakeSender{texts: make(map[int64][]string)}
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[chatID] = append(f.texts[chatID], text)
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, chatID int64, name string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, sentDoc{chatID, name, data, caption})
	return nil
}

func (f *fakeSender) last(chatID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.texts[chatID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type harness struct {
	store   ledger.Store
	sender  *fakeSender
	handler *Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	store := ledger.NewSQLiteStore(db, ledger.DefaultRewards())
	t.Cleanup(func() { store.Close() })

	sender := newFakeSender()
	service := NewService(store, "SLM", time.UTC)
	isAdmin := func(id int64) bool { return id == adminID }

	return &harness{
		store:   store,
		sender:  sender,
		handler: NewHandler(service, isAdmin, sender, "SLM"),
	}
}

func TestHandleCommand_NotAdminCommand(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.handler.HandleCommand(context.Background(), adminID, adminID, "start", nil))
	assert.Empty(t, h.sender.texts)
}

func TestHandleCommand_RejectsNonAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, cmd := range []string{CmdExport, CmdExportWallets, CmdStats, CmdGrant} {
		assert.True(t, h.handler.HandleCommand(ctx, 42, 42, cmd, []string{"42", "1000"}))
		assert.Contains(t, h.sender.last(42), "нет прав")
	}
	assert.Empty(t, h.sender.docs)

	// /grant от не-админа не должен создавать начислений
	_, err := h.store.Get(ctx, 42)
	assert.Error(t, err)
}

func TestHandleCommand_Export(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.store.GetOrCreate(ctx, 10, "bob")
	require.NoError(t, err)
	_, _, err = h.store.GetOrCreate(ctx, 11, "carol")
	require.NoError(t, err)

	require.True(t, h.handler.HandleCommand(ctx, adminID, adminID, CmdExport, nil))
	require.Len(t, h.sender.docs, 1)

	doc := h.sender.docs[0]
	assert.Equal(t, int64(adminID), doc.chatID)
	assert.Equal(t, UsersFilename, doc.name)

	var users []ledger.Record
	require.NoError(t, json.Unmarshal(doc.data, &users))
	assert.Len(t, users, 2)
}

func TestHandleCommand_ExportWalletsEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.store.GetOrCreate(ctx, 10, "bob")
	require.NoError(t, err)

	require.True(t, h.handler.HandleCommand(ctx, adminID, adminID, CmdExportWallets, nil))
	require.Len(t, h.sender.docs, 1)
	assert.Equal(t, WalletsFilename, h.sender.docs[0].name)
	assert.Equal(t, "[]\n", string(h.sender.docs[0].data))
}

func TestHandleCommand_SendDocumentFails(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errors.New("telegram down")

	require.True(t, h.handler.HandleCommand(context.Background(), adminID, adminID, CmdExport, nil))
	assert.Contains(t, h.sender.last(adminID), "Ошибка отправки файла")
}

func TestHandleCommand_Stats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.store.GetOrCreate(ctx, 10, "bob")
	require.NoError(t, err)
	_, err = h.store.CreditBalance(ctx, 10, 1500, ledger.KindAdminGrant, "test")
	require.NoError(t, err)

	require.True(t, h.handler.HandleCommand(ctx, adminID, adminID, CmdStats, nil))
	text := h.sender.last(adminID)
	assert.Contains(t, text, "Пользователей: 1")
	assert.Contains(t, text, "Завершили участие: 0")
}

func TestHandleCommand_Grant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.store.GetOrCreate(ctx, 10, "bob")
	require.NoError(t, err)

	require.True(t, h.handler.HandleCommand(ctx, adminID, adminID, CmdGrant, []string{"10", "50"}))
	assert.Contains(t, h.sender.last(adminID), "✅")
	assert.Contains(t, h.sender.last(10), "Администратор начислил")

	rec, err := h.store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(50), rec.Balance)

	history, err := h.store.History(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ledger.KindAdminGrant, history[0].Kind)
}

func TestHandleCommand_GrantInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "Формат"},
		{"bad id", []string{"abc", "10"}, "числом"},
		{"zero amount", []string{"10", "0"}, "положительной"},
		{"negative amount", []string{"10", "-5"}, "положительной"},
		{"unknown user", []string{"999", "10"}, "не найден"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, h.handler.HandleCommand(ctx, adminID, adminID, CmdGrant, tt.args))
			assert.True(t, strings.Contains(h.sender.last(adminID), tt.want), h.sender.last(adminID))
		})
	}
}

func TestDailyReport(t *testing.T) {
	h := newHarness(t)
	service := NewService(h.store, "SLM", time.UTC)
	service.now = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }

	text, err := service.DailyReport(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Отчёт на")
	assert.Contains(t, text, "Пользователей: 0")
}
