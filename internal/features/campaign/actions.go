package campaign

import (
	"fmt"
	"strconv"
	"strings"
)

// Action — закрытый набор действий пользователя.
// Транспорт декодирует callback/команду/текст ровно один раз, дальше работает только с типами.
type Action interface {
	action()
}

type (
	// Start — /start, Payload — параметр deep link (например "ref123")
	Start        struct{ Payload string }
	ShowMenu     struct{}
	ShowBalance  struct{}
	ShowReferral struct{}
	ShowTerms    struct{}
	ShowHistory  struct{}
	ShowTasks    struct{}
	// NavigateTo — открыть карточку задания, ничего не начисляет
	NavigateTo struct{ Task int }
	// CompleteTask — пользователь нажал «Выполнено» на карточке задания
	CompleteTask   struct{ Task int }
	CheckTasks     struct{}
	EnterReferral  struct{}
	SubmitReferral struct{ Code string }
	SubmitHandle   struct{ Handle string }
	SubmitWallet   struct{ Address string }
	// TextInput — свободный текст; смысл определяется ожидаемым вводом
	TextInput struct{ Text string }
)

func (Start) action()          {}
func (ShowMenu) action()       {}
func (ShowBalance) action()    {}
func (ShowReferral) action()   {}
func (ShowTerms) action()      {}
func (ShowHistory) action()    {}
func (ShowTasks) action()      {}
func (NavigateTo) action()     {}
func (CompleteTask) action()   {}
func (CheckTasks) action()     {}
func (EnterReferral) action()  {}
func (SubmitReferral) action() {}
func (SubmitHandle) action()   {}
func (SubmitWallet) action()   {}
func (TextInput) action()      {}

// callback data
const (
	cbMenu     = "menu"
	cbBalance  = "balance"
	cbReferral = "referral"
	cbTerms    = "terms"
	cbHistory  = "history"
	cbTasks    = "tasks"
	cbCheck    = "check"
	cbRefEnter = "ref_enter"
	cbNav      = "nav:"
	cbDo       = "do:"
)

// EncodeCallback превращает действие в callback_data кнопки.
// Действия, несущие пользовательский текст, в кнопки не кодируются.
func EncodeCallback(a Action) (string, error) {
	switch v := a.(type) {
	case ShowMenu:
		return cbMenu, nil
	case ShowBalance:
		return cbBalance, nil
	case ShowReferral:
		return cbReferral, nil
	case ShowTerms:
		return cbTerms, nil
	case ShowHistory:
		return cbHistory, nil
	case ShowTasks:
		return cbTasks, nil
	case CheckTasks:
		return cbCheck, nil
	case EnterReferral:
		return cbRefEnter, nil
	case NavigateTo:
		return cbNav + strconv.Itoa(v.Task), nil
	case CompleteTask:
		return cbDo + strconv.Itoa(v.Task), nil
	}
	return "", fmt.Errorf("действие %T нельзя закодировать в callback", a)
}

// mustCallback — для статических кнопок движка.
func mustCallback(a Action) string {
	data, err := EncodeCallback(a)
	if err != nil {
		panic(err)
	}
	return data
}

// DecodeCallback разбирает callback_data. Неизвестные данные — ошибка.
func DecodeCallback(data string) (Action, error) {
	switch data {
	case cbMenu:
		return ShowMenu{}, nil
	case cbBalance:
		return ShowBalance{}, nil
	case cbReferral:
		return ShowReferral{}, nil
	case cbTerms:
		return ShowTerms{}, nil
	case cbHistory:
		return ShowHistory{}, nil
	case cbTasks:
		return ShowTasks{}, nil
	case cbCheck:
		return CheckTasks{}, nil
	case cbRefEnter:
		return EnterReferral{}, nil
	}

	if rest, ok := strings.CutPrefix(data, cbNav); ok {
		task, err := parseTaskIndex(rest)
		if err != nil {
			return nil, err
		}
		return NavigateTo{Task: task}, nil
	}
	if rest, ok := strings.CutPrefix(data, cbDo); ok {
		task, err := parseTaskIndex(rest)
		if err != nil {
			return nil, err
		}
		return CompleteTask{Task: task}, nil
	}
	return nil, fmt.Errorf("неизвестный callback %q", data)
}

func parseTaskIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("некорректный номер задания %q", s)
	}
	return n, nil
}

// DecodeCommand сопоставляет команду пользователя действию.
// ok=false — команда не относится к кампании (например, админская).
func DecodeCommand(cmd string, args []string) (Action, bool) {
	switch cmd {
	case "start":
		payload := ""
		if len(args) > 0 {
			payload = args[0]
		}
		return Start{Payload: payload}, true
	case "menu", "help":
		return ShowMenu{}, true
	case "balance":
		return ShowBalance{}, true
	case "referral", "ref":
		if len(args) > 0 {
			return SubmitReferral{Code: args[0]}, true
		}
		return ShowReferral{}, true
	case "terms":
		return ShowTerms{}, true
	case "history":
		return ShowHistory{}, true
	case "tasks", "airdrop":
		return ShowTasks{}, true
	case "check":
		return CheckTasks{}, true
	case "wallet":
		if len(args) > 0 {
			return SubmitWallet{Address: args[0]}, true
		}
		return CompleteTask{Task: 5}, true
	}
	return nil, false
}
