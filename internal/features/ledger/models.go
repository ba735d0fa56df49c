// Package ledger хранит участников airdrop: баланс, реферальную связь,
// флаги заданий и журнал начислений.
// models.go описывает структуры записей и результатов операций.
package ledger

import "time"

const (
	// TaskCount — количество заданий кампании (индексы 1..5)
	TaskCount = 5
	// StageDone — значение current_task, когда все задания выполнены
	StageDone = TaskCount + 1
)

// Record — строка таблицы users.
// Одна запись на Telegram-пользователя, никогда не удаляется.
type Record struct {
	UserID         int64      `db:"user_id" json:"user_id"`
	Username       string     `db:"username" json:"username"`
	XUsername      string     `db:"x_username" json:"x_username"`
	WalletAddress  string     `db:"wallet_address" json:"wallet_address"`
	Balance        int64      `db:"balance" json:"balance"`
	Referrals      int        `db:"referrals" json:"referrals"`
	ReferrerID     *int64     `db:"referrer_id" json:"referrer_id"`
	Task1          bool       `db:"task1" json:"task1"`
	Task2          bool       `db:"task2" json:"task2"`
	Task3          bool       `db:"task3" json:"task3"`
	Task4          bool       `db:"task4" json:"task4"`
	Task5          bool       `db:"task5" json:"task5"`
	CurrentTask    int        `db:"current_task" json:"current_task"`
	Participated   bool       `db:"participated" json:"participated"`
	ParticipatedAt *time.Time `db:"participated_at" json:"participated_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Flags возвращает флаги заданий по индексу (Flags()[0] — задание 1).
func (r *Record) Flags() [TaskCount]bool {
	return [TaskCount]bool{r.Task1, r.Task2, r.Task3, r.Task4, r.Task5}
}

// Done сообщает, выполнено ли задание task (1..5).
func (r *Record) Done(task int) bool {
	if task < 1 || task > TaskCount {
		return false
	}
	return r.Flags()[task-1]
}

// Snapshot — проекция записи, нужная для завершения участия.
type Snapshot struct {
	UserID        int64
	WalletAddress string
	Tasks         [TaskCount]bool
	CurrentTask   int
	Participated  bool
}

// AllDone — выполнены все задания 1..upTo.
func (s *Snapshot) AllDone(upTo int) bool {
	for i := 0; i < upTo && i < TaskCount; i++ {
		if !s.Tasks[i] {
			return false
		}
	}
	return true
}

// EntryKind — тип начисления в журнале.
type EntryKind string

const (
	KindTaskReward         EntryKind = "task_reward"         // Награда за задание
	KindCompletionBonus    EntryKind = "completion_bonus"    // Бонус за завершение всех заданий
	KindReferralJoin       EntryKind = "referral_join"       // Бонус за привязку реферала
	KindReferralCompletion EntryKind = "referral_completion" // Бонус пригласившему за завершение реферала
	KindAdminGrant         EntryKind = "admin_grant"         // Выдача админом
)

// Entry — одна строка журнала начислений (ledger_entries).
type Entry struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Kind        EntryKind `db:"kind"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Типы реферальных событий (referral_events.event_type)
const (
	EventJoin       = "join"
	EventCompletion = "completion"
)

// Rewards — размеры начислений.
type Rewards struct {
	PerTask    int64 // за каждое задание
	Completion int64 // за завершение участия
	Referral   int64 // за каждое реферальное событие
}

// DefaultRewards — 20 за задание, 100 за завершение, 20 за реферала.
func DefaultRewards() Rewards {
	return Rewards{PerTask: 20, Completion: 100, Referral: 20}
}

// TaskUpdate — параметры отметки одного задания.
type TaskUpdate struct {
	Task    int    // 1..5
	XHandle string // ник в X (только для задания 3)
}

// TaskResult — состояние записи после отметки задания.
type TaskResult struct {
	Balance     int64
	CurrentTask int // пересчитан из флагов внутри того же UPDATE
}

// FinalizeResult — итог перехода в participated.
type FinalizeResult struct {
	Balance          int64  // баланс пользователя после завершения
	Credited         int64  // сколько начислено пользователю в этой операции
	WalletAddress    string // сохранённый адрес (checksum)
	ReferrerID       *int64 // пригласивший, если есть
	ReferrerCredited int64  // сколько начислено пригласившему (0, если событие уже было)
	ReferrerBalance  int64
}

// LinkResult — итог привязки реферала.
type LinkResult struct {
	ReferrerID      int64
	Bonus           int64 // начислено каждой стороне
	Balance         int64 // баланс приглашённого после привязки
	ReferrerBalance int64
	Referrals       int // число приглашённых у пригласившего
}

// WalletRow — строка выгрузки адресов.
type WalletRow struct {
	UserID        int64  `db:"user_id" json:"user_id"`
	WalletAddress string `db:"wallet_address" json:"wallet_address"`
}

// Stats — агрегаты по кампании.
type Stats struct {
	Users        int64 `db:"users" json:"users"`
	Participants int64 `db:"participants" json:"participants"`
	Wallets      int64 `db:"wallets" json:"wallets"`
	Referred     int64 `db:"referred" json:"referred"`
	TotalBalance int64 `db:"total_balance" json:"total_balance"`
}

// NextTask — наименьший индекс невыполненного задания или StageDone.
func NextTask(flags [TaskCount]bool) int {
	for i, done := range flags {
		if !done {
			return i + 1
		}
	}
	return StageDone
}
