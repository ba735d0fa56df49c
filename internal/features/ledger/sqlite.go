package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"soliumcoin.org/airdrop-bot/internal/common"
)

// SQLiteStore — Store поверх sqlx + go-sqlite3.
// База открывается с _txlock=immediate и одним соединением, поэтому
// транзакции-писатели выполняются строго по очереди и FOR UPDATE не нужен.
type SQLiteStore struct {
	db      *sqlx.DB
	rewards Rewards
}

// NewSQLiteStore создаёт хранилище поверх открытой базы (см. db/sqlite.Open).
func NewSQLiteStore(db *sqlx.DB, rewards Rewards) *SQLiteStore {
	return &SQLiteStore{db: db, rewards: rewards}
}

func getUserTx(ctx context.Context, q sqlx.QueryerContext, userID int64) (*Record, error) {
	var rec Record
	err := sqlx.GetContext(ctx, q, &rec, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID int64, username string) (*Record, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, username) VALUES (?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, username)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	created := n == 1

	if !created {
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET username = ?, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ? AND username <> ?
		`, username, userID, username)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка обновления username: %w", err)
		}
	}

	rec, err := getUserTx(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	return rec, created, tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, userID int64) (*Record, error) {
	return getUserTx(ctx, s.db, userID)
}

func (s *SQLiteStore) CreditBalance(ctx context.Context, userID, amount int64, kind EntryKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance, `
		UPDATE users SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
		RETURNING balance
	`, amount, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка начисления: %w", err)
	}

	if err := insertEntryTx(ctx, tx, userID, amount, kind, description); err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

func (s *SQLiteStore) SetTaskFlag(ctx context.Context, userID int64, upd TaskUpdate) (*TaskResult, error) {
	col, err := validateTaskUpdate(upd)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	var res TaskResult
	err = tx.QueryRowxContext(ctx, fmt.Sprintf(`
		UPDATE users
		SET %[1]s = TRUE,
		    balance = balance + ?,
		    current_task = %[2]s,
		    x_username = COALESCE(NULLIF(?, ''), x_username),
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND %[1]s = FALSE AND participated = FALSE
		RETURNING balance, current_task
	`, col, nextTaskExpr(col)), s.rewards.PerTask, upd.XHandle, userID).Scan(&res.Balance, &res.CurrentTask)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.taskMiss(ctx, tx, userID, upd.Task)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка отметки задания: %w", err)
	}

	if err := insertEntryTx(ctx, tx, userID, s.rewards.PerTask, KindTaskReward, taskDescription(upd.Task)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &res, nil
}

func (s *SQLiteStore) taskMiss(ctx context.Context, tx *sqlx.Tx, userID int64, task int) error {
	rec, err := getUserTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if rec.Participated {
		return common.ErrAlreadyParticipated
	}
	if rec.Done(task) {
		return common.ErrTaskAlreadyDone
	}
	return fmt.Errorf("задание %d не обновлено", task)
}

func (s *SQLiteStore) SetParticipated(ctx context.Context, userID int64) (*FinalizeResult, error) {
	return s.complete(ctx, userID, "", true)
}

func (s *SQLiteStore) Finalize(ctx context.Context, userID int64, wallet string) (*FinalizeResult, error) {
	normalized, err := NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, userID, normalized, false)
}

func (s *SQLiteStore) complete(ctx context.Context, userID int64, wallet string, requireAll bool) (*FinalizeResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	rec, err := getUserTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := checkFinalizable(rec, requireAll); err != nil {
		return nil, err
	}
	if wallet == "" {
		wallet = rec.WalletAddress
	}

	total, taskReward := completionCredit(rec, s.rewards)
	var balance int64
	err = tx.GetContext(ctx, &balance, `
		UPDATE users
		SET wallet_address = ?, task5 = TRUE, current_task = ?,
		    participated = TRUE, participated_at = CURRENT_TIMESTAMP,
		    balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND participated = FALSE
		RETURNING balance
	`, wallet, StageDone, total, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrAlreadyParticipated
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка завершения участия: %w", err)
	}

	if taskReward > 0 {
		if err := insertEntryTx(ctx, tx, userID, taskReward, KindTaskReward, taskDescription(TaskCount)); err != nil {
			return nil, err
		}
	}
	if err := insertEntryTx(ctx, tx, userID, s.rewards.Completion, KindCompletionBonus, "Завершение участия"); err != nil {
		return nil, err
	}

	res := &FinalizeResult{Balance: balance, Credited: total, WalletAddress: wallet, ReferrerID: rec.ReferrerID}
	if rec.ReferrerID != nil {
		credited, refBalance, err := s.payReferral(ctx, tx, *rec.ReferrerID, userID, EventCompletion)
		if err != nil {
			return nil, err
		}
		res.ReferrerCredited = credited
		res.ReferrerBalance = refBalance
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) payReferral(ctx context.Context, tx *sqlx.Tx, referrerID, refereeID int64, event string) (int64, int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO referral_events (id, referrer_id, referee_id, event_type, amount)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (referrer_id, referee_id, event_type) DO NOTHING
	`, uuid.New().String(), referrerID, refereeID, event, s.rewards.Referral)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка записи реферального события: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	var balance int64
	if n == 0 {
		err = tx.GetContext(ctx, &balance, `SELECT balance FROM users WHERE user_id = ?`, referrerID)
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

	err = tx.GetContext(ctx, &balance, `
		UPDATE users SET balance = balance + ?, referrals = referrals + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
		RETURNING balance
	`, s.rewards.Referral, referrals, referrerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, common.ErrReferrerNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка начисления пригласившему: %w", err)
	}
	if err := insertEntryTx(ctx, tx, referrerID, s.rewards.Referral, kind, desc); err != nil {
		return 0, 0, err
	}
	return s.rewards.Referral, balance, nil
}

func (s *SQLiteStore) LinkReferral(ctx context.Context, userID, referrerID int64) (*LinkResult, error) {
	if userID == referrerID {
		return nil, common.ErrSelfReferral
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	user, err := getUserTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := getUserTx(ctx, tx, referrerID); err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrReferrerNotFound
		}
		return nil, err
	}
	if user.Participated {
		return nil, common.ErrAlreadyParticipated
	}
	if user.ReferrerID != nil {
		return nil, common.ErrReferralAlreadySet
	}

	bonus := s.rewards.Referral
	var balance int64
	err = tx.GetContext(ctx, &balance, `
		UPDATE users SET referrer_id = ?, balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND referrer_id IS NULL
		RETURNING balance
	`, referrerID, bonus, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrReferralAlreadySet
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка привязки реферала: %w", err)
	}
	if err := insertEntryTx(ctx, tx, userID, bonus, KindReferralJoin, fmt.Sprintf("Приглашение от %d", referrerID)); err != nil {
		return nil, err
	}

	credited, refBalance, err := s.payReferral(ctx, tx, referrerID, userID, EventJoin)
	if err != nil {
		return nil, err
	}
	if credited == 0 {
		return nil, common.ErrReferralAlreadySet
	}

	var referrals int
	if err := tx.GetContext(ctx, &referrals, `SELECT referrals FROM users WHERE user_id = ?`, referrerID); err != nil {
		return nil, fmt.Errorf("ошибка получения числа рефералов: %w", err)
	}

	if err := tx.Commit(); err != nil {
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

func insertEntryTx(ctx context.Context, tx *sqlx.Tx, userID, amount int64, kind EntryKind, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (user_id, amount, kind, description)
		VALUES (?, ?, ?, ?)
	`, userID, amount, string(kind), description)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadWalletAndFlags(ctx context.Context, userID int64) (*Snapshot, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(rec), nil
}

func (s *SQLiteStore) History(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, amount, kind, description, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Export(ctx context.Context) ([]Record, error) {
	var out []Record
	if err := s.db.SelectContext(ctx, &out, `SELECT `+userColumns+` FROM users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("ошибка выгрузки пользователей: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Wallets(ctx context.Context) ([]WalletRow, error) {
	var out []WalletRow
	err := s.db.SelectContext(ctx, &out, `
		SELECT user_id, wallet_address FROM users
		WHERE wallet_address <> ''
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выгрузки адресов: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT COUNT(*) AS users,
		       COALESCE(SUM(CASE WHEN participated THEN 1 ELSE 0 END), 0) AS participants,
		       COALESCE(SUM(CASE WHEN wallet_address <> '' THEN 1 ELSE 0 END), 0) AS wallets,
		       COUNT(referrer_id) AS referred,
		       COALESCE(SUM(balance), 0) AS total_balance
		FROM users
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
