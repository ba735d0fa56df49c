package campaign

import (
	"regexp"
	"strings"

	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

// Номера заданий
const (
	TaskGroup   = 1 // вступить в группу
	TaskChannel = 2 // подписаться на канал
	TaskFollowX = 3 // подписаться в X
	TaskRetweet = 4 // ретвит закреплённого поста
	TaskWallet  = 5 // BSC-кошелёк
)

// ник в X — не длиннее 15 символов
var handleRe = regexp.MustCompile(`^@[A-Za-z0-9_]{1,15}$`)

// Rules — настраиваемые правила доступа к заданиям.
type Rules struct {
	Task4RequiresTask3 bool
	StrictOrder        bool
}

// Gate проверяет, можно ли сейчас выполнять задание task.
// Задание 5 всегда требует 1..4 (ErrTasksIncomplete), остальные — по настройкам (ErrTaskLocked).
func (r Rules) Gate(rec *ledger.Record, task int) error {
	if task < 1 || task > ledger.TaskCount {
		return common.ErrInvalidTask
	}
	if task == TaskWallet {
		for t := 1; t < TaskWallet; t++ {
			if !rec.Done(t) {
				return common.ErrTasksIncomplete
			}
		}
		return nil
	}
	if r.StrictOrder {
		for t := 1; t < task; t++ {
			if !rec.Done(t) {
				return common.ErrTaskLocked
			}
		}
	}
	if task == TaskRetweet && r.Task4RequiresTask3 && !rec.Done(TaskFollowX) {
		return common.ErrTaskLocked
	}
	return nil
}

// missingTasks — невыполненные задания из 1..upTo.
func missingTasks(rec *ledger.Record, upTo int) []int {
	var out []int
	for t := 1; t <= upTo; t++ {
		if !rec.Done(t) {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeHandle приводит ник в X к виду @name.
func NormalizeHandle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !handleRe.MatchString(s) {
		return "", common.ErrInvalidHandle
	}
	return s, nil
}
