package ledger

import (
	"context"
	"fmt"
	"strings"

	"soliumcoin.org/airdrop-bot/internal/common"
)

// Store — хранилище участников.
// Каждая изменяющая операция выполняется одной транзакцией БД:
// флаг, баланс и запись журнала либо фиксируются вместе, либо не фиксируются вовсе.
type Store interface {
	// GetOrCreate создаёт запись при первом обращении; при повторе обновляет только username.
	GetOrCreate(ctx context.Context, userID int64, username string) (*Record, bool, error)
	Get(ctx context.Context, userID int64) (*Record, error)
	CreditBalance(ctx context.Context, userID, amount int64, kind EntryKind, description string) (int64, error)
	SetTaskFlag(ctx context.Context, userID int64, upd TaskUpdate) (*TaskResult, error)
	SetParticipated(ctx context.Context, userID int64) (*FinalizeResult, error)
	Finalize(ctx context.Context, userID int64, wallet string) (*FinalizeResult, error)
	LinkReferral(ctx context.Context, userID, referrerID int64) (*LinkResult, error)
	ReadWalletAndFlags(ctx context.Context, userID int64) (*Snapshot, error)
	History(ctx context.Context, userID int64, limit int) ([]Entry, error)
	Export(ctx context.Context) ([]Record, error)
	Wallets(ctx context.Context) ([]WalletRow, error)
	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// taskColumns — имена колонок флагов; индекс задания никогда не подставляется в SQL напрямую.
var taskColumns = [TaskCount]string{"task1", "task2", "task3", "task4", "task5"}

const userColumns = `user_id, username, x_username, wallet_address, balance, referrals, referrer_id,
	task1, task2, task3, task4, task5, current_task, participated, participated_at, created_at, updated_at`

func validateTaskUpdate(upd TaskUpdate) (string, error) {
	if upd.Task < 1 || upd.Task > TaskCount {
		return "", fmt.Errorf("%w: %d", common.ErrInvalidTask, upd.Task)
	}
	return taskColumns[upd.Task-1], nil
}

// nextTaskExpr — SQL-выражение current_task после установки флага col.
// Вычисляется по флагам самой строки внутри UPDATE.
func nextTaskExpr(col string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for i, c := range taskColumns {
		if c == col {
			continue
		}
		fmt.Fprintf(&b, " WHEN NOT %s THEN %d", c, i+1)
	}
	fmt.Fprintf(&b, " ELSE %d END", StageDone)
	return b.String()
}

func taskDescription(task int) string {
	return fmt.Sprintf("Задание %d", task)
}

// snapshotOf строит проекцию из полной записи.
func snapshotOf(rec *Record) *Snapshot {
	return &Snapshot{
		UserID:        rec.UserID,
		WalletAddress: rec.WalletAddress,
		Tasks:         rec.Flags(),
		CurrentTask:   rec.CurrentTask,
		Participated:  rec.Participated,
	}
}

// completionCredit считает, сколько получит пользователь при завершении.
// Если задание 5 ещё не отмечено, к бонусу добавляется награда за него.
func completionCredit(rec *Record, rw Rewards) (total int64, taskReward int64) {
	if !rec.Task5 {
		taskReward = rw.PerTask
	}
	return taskReward + rw.Completion, taskReward
}

// checkFinalizable проверяет запись под блокировкой перед завершением.
// requireAll: для SetParticipated нужны все пять флагов, для Finalize — только 1..4.
func checkFinalizable(rec *Record, requireAll bool) error {
	if rec.Participated {
		return common.ErrAlreadyParticipated
	}
	need := TaskCount - 1
	if requireAll {
		need = TaskCount
	}
	if !snapshotOf(rec).AllDone(need) {
		return common.ErrTasksIncomplete
	}
	return nil
}
