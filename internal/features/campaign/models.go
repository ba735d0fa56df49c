// Package campaign — движок прохождения заданий airdrop.
// Принимает событие от транспорта, проверяет действие по состоянию участника,
// начисляет награды через ledger.Store и возвращает готовый ответ для отрисовки.
package campaign

import (
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

// Stage — этап участника. Вычисляется из записи и ожидаемого ввода, в БД не хранится.
type Stage int

const (
	StageNotStarted Stage = iota
	StageTask1
	StageTask2
	StageTask3
	StageTask4
	StageTask5
	StageAwaitingWallet
	StageParticipated
)

func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "NOT_STARTED"
	case StageTask1:
		return "TASK_1"
	case StageTask2:
		return "TASK_2"
	case StageTask3:
		return "TASK_3"
	case StageTask4:
		return "TASK_4"
	case StageTask5:
		return "TASK_5"
	case StageAwaitingWallet:
		return "AWAITING_WALLET"
	case StageParticipated:
		return "PARTICIPATED"
	}
	return "UNKNOWN"
}

// StageOf выводит этап из записи. nil — пользователь ещё не писал боту.
func StageOf(rec *ledger.Record, pending PendingInput) Stage {
	switch {
	case rec == nil:
		return StageNotStarted
	case rec.Participated:
		return StageParticipated
	case rec.CurrentTask >= ledger.TaskCount && pending == PendingWallet:
		return StageAwaitingWallet
	case rec.CurrentTask >= ledger.StageDone:
		return StageTask5
	}
	return StageTask1 + Stage(rec.CurrentTask-1)
}

// PendingInput — какой свободный текст бот ждёт от пользователя.
type PendingInput string

const (
	PendingNone     PendingInput = ""
	PendingWallet   PendingInput = "wallet"
	PendingXHandle  PendingInput = "x_handle"
	PendingReferral PendingInput = "referral"
)

func (p PendingInput) valid() bool {
	switch p {
	case PendingNone, PendingWallet, PendingXHandle, PendingReferral:
		return true
	}
	return false
}

// Outcome — код результата обработки события.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomePrompt
	OutcomeAlreadyDone
	OutcomeAlreadyParticipated
	OutcomeValidation
	OutcomeNotFound
	OutcomeConflict
	OutcomeLocked
	OutcomeNotMember
	OutcomeRetry
	OutcomeSystemError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomePrompt:
		return "prompt"
	case OutcomeAlreadyDone:
		return "already_done"
	case OutcomeAlreadyParticipated:
		return "already_participated"
	case OutcomeValidation:
		return "validation"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	case OutcomeLocked:
		return "locked"
	case OutcomeNotMember:
		return "not_member"
	case OutcomeRetry:
		return "retry"
	case OutcomeSystemError:
		return "system_error"
	}
	return "unknown"
}

// Button — кнопка inline-клавиатуры: либо callback Data, либо ссылка URL.
type Button struct {
	Text string
	Data string
	URL  string
}

// Result — то, что транспорт должен показать пользователю.
type Result struct {
	Outcome Outcome
	Text    string
	Buttons [][]Button
	// Photo — PNG (QR-код реферальной ссылки), Text уходит подписью
	Photo []byte
	// Edit — экран навигации: при нажатии кнопки можно отредактировать исходное сообщение
	Edit bool
}

// Event — одно декодированное обновление от пользователя.
type Event struct {
	UserID   int64
	Username string
	Action   Action
}
