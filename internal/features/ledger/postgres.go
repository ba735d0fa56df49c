package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"soliumcoin.org/airdrop-bot/internal/common"
)

// PostgresStore — Store поверх пула pgx.
// Гонки закрываются внутри транзакций: SELECT ... FOR UPDATE и условия
// participated = FALSE / flag = FALSE в самих UPDATE.
type PostgresStore struct {
	db      *pgxpool.Pool
	rewards Rewards
}

// NewPostgresStore создаёт хранилище. Миграции должны быть уже применены.
func NewPostgresStore(db *pgxpool.Pool, rewards Rewards) *PostgresStore {
	return &PostgresStore{db: db, rewards: rewards}
}

func scanRecord(row pgx.Row, extra ...any) (*Record, error) {
	var r Record
	dest := []any{
		&r.UserID, &r.Username, &r.XUsername, &r.WalletAddress, &r.Balance, &r.Referrals, &r.ReferrerID,
		&r.Task1, &r.Task2, &r.Task3, &r.Task4, &r.Task5,
		&r.CurrentTask, &r.Participated, &r.ParticipatedAt, &r.CreatedAt, &r.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, userID int64, username string) (*Record, bool, error) {
	var created bool
	rec, err := scanRecord(s.db.QueryRow(ctx, `
		INSERT INTO users (user_id, username) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    updated_at = CASE WHEN users.username IS DISTINCT FROM EXCLUDED.username THEN NOW() ELSE users.updated_at END
		RETURNING `+userColumns+`, (xmax = 0)
	`, userID, username), &created)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return rec, created, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID int64) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return rec, nil
}

// CreditBalance начисляет amount и пишет запись в журнал.
func (s *PostgresStore) CreditBalance(ctx context.Context, userID, amount int64, kind EntryKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}

	if err := insertEntryPg(ctx, tx, userID, amount, kind, description); err != nil {
		return 0, err
	}
	return balance, tx.Commit(ctx)
}

// SetTaskFlag отмечает задание, начисляет награду и переводит current_task.
func (s *PostgresStore) SetTaskFlag(ctx context.Context, userID int64, upd TaskUpdate) (*TaskResult, error) {
	col, err := validateTaskUpdate(upd)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var res TaskResult
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE users
		SET %[1]s = TRUE,
		    balance = balance + $2,
		    current_task = %[2]s,
		    x_username = COALESCE(NULLIF($3, ''), x_username),
		    updated_at = NOW()
		WHERE user_id = $1 AND %[1]s = FALSE AND participated = FALSE
		RETURNING balance, current_task
	`, col, nextTaskExpr(col)), userID, s.rewards.PerTask, upd.XHandle).Scan(&res.Balance, &res.CurrentTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, taskMissPg(ctx, tx, userID, col)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка отметки задания: %w", err)
	}

	if err := insertEntryPg(ctx, tx, userID, s.rewards.PerTask, KindTaskReward, taskDescription(upd.Task)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &res, nil
}

// taskMissPg объясняет, почему охраняемый UPDATE не затронул строку.
func taskMissPg(ctx context.Context, tx pgx.Tx, userID int64, col string) error {
	var participated, done bool
	err := tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT participated, %s FROM users WHERE user_id = $1`, col), userID,
	).Scan(&participated, &done)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return common.ErrUserNotFound
	case err != nil:
		return fmt.Errorf("ошибка проверки задания: %w", err)
	case participated:
		return common.ErrAlreadyParticipated
	case done:
		return common.ErrTaskAlreadyDone
	}
	return fmt.Errorf("задание %s не обновлено", col)
}

// SetParticipated завершает участие, когда все пять флагов уже стоят.
func (s *PostgresStore) SetParticipated(ctx context.Context, userID int64) (*FinalizeResult, error) {
	return s.complete(ctx, userID, "", true)
}

// Finalize сохраняет кошелёк и завершает участие одной транзакцией.
func (s *PostgresStore) Finalize(ctx context.Context, userID int64, wallet string) (*FinalizeResult, error) {
	normalized, err := NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, userID, normalized, false)
}

func (s *PostgresStore) complete(ctx context.Context, userID int64, wallet string, requireAll bool) (*FinalizeResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// referrer_id меняется только до завершения, поэтому читаем его без блокировки,
	// а затем блокируем обе строки в порядке возрастания id, как LinkReferral
	ids := []int64{userID}
	var referrerID *int64
	err = tx.QueryRow(ctx, `SELECT referrer_id FROM users WHERE user_id = $1`, userID).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if referrerID != nil {
		ids = append(ids, *referrerID)
	}

	locked, err := lockUsersPg(ctx, tx, ids...)
	if err != nil {
		return nil, err
	}
	rec, ok := locked[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	if err := checkFinalizable(rec, requireAll); err != nil {
		return nil, err
	}
	if wallet == "" {
		wallet = rec.WalletAddress
	}

	total, taskReward := completionCredit(rec, s.rewards)
	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE users
		SET wallet_address = $2, task5 = TRUE, current_task = $3,
		    participated = TRUE, participated_at = NOW(),
		    balance = balance + $4, updated_at = NOW()
		WHERE user_id = $1 AND participated = FALSE
		RETURNING balance
	`, userID, wallet, StageDone, total).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAlreadyParticipated
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка завершения участия: %w", err)
	}

	if taskReward > 0 {
		if err := insertEntryPg(ctx, tx, userID, taskReward, KindTaskReward, taskDescription(TaskCount)); err != nil {
			return nil, err
		}
	}
	if err := insertEntryPg(ctx, tx, userID, s.rewards.Completion, KindCompletionBonus, "Завершение участия"); err != nil {
		return nil, err
	}

	res := &FinalizeResult{Balance: balance, Credited: total, WalletAddress: wallet, ReferrerID: rec.ReferrerID}
	if rec.ReferrerID != nil {
		credited, refBalance, err := s.payReferralPg(ctx, tx, *rec.ReferrerID, userID, EventCompletion)
		if err != nil {
			return nil, err
		}
		res.ReferrerCredited = credited
		res.ReferrerBalance = refBalance
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации: %w", err)
	}
	return res, nil
}

// payReferralPg начисляет бонус пригласившему ровно один раз на событие.
// Возвращает начисленную сумму (0 — событие уже было) и баланс пригласившего.
func (s *PostgresStore) payReferralPg(ctx context.Context, tx pgx.Tx, referrerID, refereeID int64, event string) (int64, int64, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO referral_events (id, referrer_id, referee_id, event_type, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (referrer_id, referee_id, event_type) DO NOTHING
	`, uuid.New(), referrerID, refereeID, event, s.rewards.Referral)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка записи реферального события: %w", err)
	}

	var balance int64
	if tag.RowsAffected() == 0 {
		err = tx.QueryRow(ctx, `SELECT balance FROM users WHERE user_id = $1`, referrerID).Scan(&balance)
		return 0, balance, err
	}

	referrals := 0
	kind := KindReferralCompletion
	desc := fmt.Sprintf("Реферал %d завершил задания", refereeID)
	if event == EventJoin {
		referrals = 1
		kind = KindReferralJoin
		desc = fmt.Sprintf("Приглашён пользователь %d", refereeID)
	}

	err = tx.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, referrals = referrals + $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, referrerID, s.rewards.Referral, referrals).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, common.ErrReferrerNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка начисления пригласившему: %w", err)
	}
	if err := insertEntryPg(ctx, tx, referrerID, s.rewards.Referral, kind, desc); err != nil {
		return 0, 0, err
	}
	return s.rewards.Referral, balance, nil
}

// LinkReferral записывает пригласившего и начисляет бонус обеим сторонам.
func (s *PostgresStore) LinkReferral(ctx context.Context, userID, referrerID int64) (*LinkResult, error) {
	if userID == referrerID {
		return nil, common.ErrSelfReferral
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockUsersPg(ctx, tx, userID, referrerID)
	if err != nil {
		return nil, err
	}
	user, ok := locked[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	if _, ok := locked[referrerID]; !ok {
		return nil, common.ErrReferrerNotFound
	}
	if user.Participated {
		return nil, common.ErrAlreadyParticipated
	}
	if user.ReferrerID != nil {
		return nil, common.ErrReferralAlreadySet
	}

	bonus := s.rewards.Referral
	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE users SET referrer_id = $2, balance = balance + $3, updated_at = NOW()
		WHERE user_id = $1 AND referrer_id IS NULL
		RETURNING balance
	`, userID, referrerID, bonus).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrReferralAlreadySet
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка привязки реферала: %w", err)
	}
	if err := insertEntryPg(ctx, tx, userID, bonus, KindReferralJoin, fmt.Sprintf("Приглашение от %d", referrerID)); err != nil {
		return nil, err
	}

	credited, refBalance, err := s.payReferralPg(ctx, tx, referrerID, userID, EventJoin)
	if err != nil {
		return nil, err
	}
	if credited == 0 {
		return nil, common.ErrReferralAlreadySet
	}

	var referrals int
	if err := tx.QueryRow(ctx, `SELECT referrals FROM users WHERE user_id = $1`, referrerID).Scan(&referrals); err != nil {
		return nil, fmt.Errorf("ошибка получения числа рефералов: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации: %w", err)
	}
	return &LinkResult{
		ReferrerID:      referrerID,
		Bonus:           bonus,
		Balance:         balance,
		ReferrerBalance: refBalance,
		Referrals:       referrals,
	}, nil
}

// lockUsersPg блокирует строки в порядке возрастания user_id.
// Единый порядок блокировок исключает взаимную блокировку встречных транзакций.
func lockUsersPg(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]*Record, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := tx.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE user_id = ANY($1)
		ORDER BY user_id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки пользователей: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		out[rec.UserID] = rec
	}
	return out, rows.Err()
}

func insertEntryPg(ctx context.Context, tx pgx.Tx, userID, amount int64, kind EntryKind, description string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (user_id, amount, kind, description)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, string(kind), description)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadWalletAndFlags(ctx context.Context, userID int64) (*Snapshot, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(rec), nil
}

// History возвращает последние limit начислений пользователя.
func (s *PostgresStore) History(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount, kind, description, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &kind, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		e.Kind = EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Export(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выгрузки пользователей: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Wallets(ctx context.Context) ([]WalletRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, wallet_address FROM users
		WHERE wallet_address <> ''
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выгрузки адресов: %w", err)
	}
	defer rows.Close()

	var out []WalletRow
	for rows.Next() {
		var w WalletRow
		if err := rows.Scan(&w.UserID, &w.WalletAddress); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE participated),
		       COUNT(*) FILTER (WHERE wallet_address <> ''),
		       COUNT(referrer_id),
		       COALESCE(SUM(balance), 0)::BIGINT
		FROM users
	`).Scan(&st.Users, &st.Participants, &st.Wallets, &st.Referred, &st.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
