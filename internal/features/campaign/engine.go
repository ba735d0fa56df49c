package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/config"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

const historyLimit = 10

// MembershipChecker проверяет участие пользователя в группе/канале.
// Ошибка означает «неизвестно», а не «не участник».
type MembershipChecker interface {
	IsMember(ctx context.Context, chat string, userID int64) (bool, error)
}

// Notifier доставляет уведомления после коммита. Не блокирует и не возвращает ошибок.
type Notifier interface {
	NotifyAdmins(text string)
	NotifyUser(userID int64, text string)
}

// Settings — параметры кампании, нужные движку.
type Settings struct {
	TokenName      string
	BotUsername    string
	GroupID        string
	ChannelID      string
	XAccount       string
	XPinnedPostURL string
	Rewards        ledger.Rewards
	Rules          Rules
	Location       *time.Location
}

// SettingsFromConfig собирает Settings из конфига; имя бота известно только после getMe.
func SettingsFromConfig(cfg *config.Config, botUsername string) Settings {
	return Settings{
		TokenName:      cfg.TokenName,
		BotUsername:    botUsername,
		GroupID:        cfg.GroupID,
		ChannelID:      cfg.ChannelID,
		XAccount:       cfg.XAccount,
		XPinnedPostURL: cfg.XPinnedPostURL,
		Rewards: ledger.Rewards{
			PerTask:    cfg.RewardPerTask,
			Completion: cfg.CompletionBonus,
			Referral:   cfg.ReferralBonus,
		},
		Rules: Rules{
			Task4RequiresTask3: cfg.Task4RequiresTask3,
			StrictOrder:        cfg.TasksStrictOrder,
		},
		Location: common.LoadLocation(cfg.AppTimezone),
	}
}

// Engine — конечный автомат прохождения заданий.
type Engine struct {
	store    ledger.Store
	sessions SessionStore
	members  MembershipChecker
	notifier Notifier
	settings Settings
}

func NewEngine(store ledger.Store, sessions SessionStore, members MembershipChecker, notifier Notifier, settings Settings) *Engine {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Engine{
		store:    store,
		sessions: sessions,
		members:  members,
		notifier: notifier,
		settings: settings,
	}
}

// Handle обрабатывает одно событие. Всегда возвращает ответ для пользователя.
func (e *Engine) Handle(ctx context.Context, ev Event) *Result {
	logger := log.WithFields(log.Fields{
		"user_id": ev.UserID,
		"action":  fmt.Sprintf("%T", ev.Action),
	})

	switch a := ev.Action.(type) {
	case Start:
		rec, created, err := e.store.GetOrCreate(ctx, ev.UserID, ev.Username)
		if err != nil {
			logger.WithError(err).Error("GetOrCreate failed")
			return systemError()
		}
		if created {
			logger.Info("Новый участник")
		}
		return e.start(ctx, logger, rec, created, a)
	case ShowMenu:
		return e.menu()
	case ShowTerms:
		return &Result{Text: msgTerms(e.settings), Buttons: backToMenu(), Edit: true}
	}

	// запись создаётся только через /start
	rec, err := e.store.Get(ctx, ev.UserID)
	if errors.Is(err, common.ErrUserNotFound) {
		logger.Debug("event before /start")
		return notStarted()
	}
	if err != nil {
		logger.WithError(err).Error("user lookup failed")
		return systemError()
	}

	switch a := ev.Action.(type) {
	case ShowBalance:
		return &Result{Text: msgBalance(rec, e.settings.TokenName), Buttons: backToMenu()}
	case ShowReferral:
		return e.referralScreen(logger, rec)
	case ShowHistory:
		return e.history(ctx, logger, rec)
	case ShowTasks:
		return e.taskList(rec)
	case NavigateTo:
		return e.navigate(rec, a.Task)
	case CompleteTask:
		return e.completeTask(ctx, logger, rec, a.Task)
	case CheckTasks:
		return e.checkTasks(ctx, logger, rec)
	case EnterReferral:
		return e.enterReferral(ctx, logger, rec)
	case SubmitReferral:
		return e.submitReferral(ctx, logger, rec, a.Code)
	case SubmitHandle:
		return e.submitHandle(ctx, logger, rec, a.Handle)
	case SubmitWallet:
		return e.submitWallet(ctx, logger, rec, a.Address)
	case TextInput:
		return e.textInput(ctx, logger, rec, a.Text)
	}

	logger.Warn("unknown action")
	return &Result{Outcome: OutcomeValidation, Text: msgUseMenu, Buttons: mainMenu()}
}

// Stage — текущий этап пользователя (для админки и логов).
func (e *Engine) Stage(ctx context.Context, userID int64) (Stage, error) {
	rec, err := e.store.Get(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		return StageNotStarted, nil
	}
	if err != nil {
		return StageNotStarted, err
	}
	pending, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return StageNotStarted, err
	}
	return StageOf(rec, pending), nil
}

func (e *Engine) start(ctx context.Context, logger *log.Entry, rec *ledger.Record, created bool, a Start) *Result {
	e.clearPending(ctx, logger, rec.UserID)

	// после завершения участия повторного входа нет
	if rec.Participated {
		return &Result{Outcome: OutcomeAlreadyParticipated, Text: msgAlreadyParticipated, Buttons: mainMenu()}
	}

	res := &Result{Text: msgWelcome(e.settings.TokenName), Buttons: mainMenu()}
	if a.Payload == "" {
		return res
	}
	// реферальная ссылка учитывается только при первом обращении
	if !created {
		logger.WithField("payload", a.Payload).Debug("start payload ignored for existing user")
		return res
	}

	referrerID, err := ParseReferralCode(a.Payload)
	if err != nil {
		logger.WithField("payload", a.Payload).Debug("start payload is not a referral code")
		return res
	}
	link, err := e.store.LinkReferral(ctx, rec.UserID, referrerID)
	if err != nil {
		failed := e.fail(logger, err)
		res.Outcome = failed.Outcome
		res.Text += "\n\n" + failed.Text
		return res
	}
	e.notifyReferrerJoined(rec, link)
	res.Text += "\n\n" + msgReferralLinked(link, e.settings.TokenName)
	return res
}

func (e *Engine) menu() *Result {
	return &Result{Text: msgMenu, Buttons: mainMenu(), Edit: true}
}

func (e *Engine) referralScreen(logger *log.Entry, rec *ledger.Record) *Result {
	link := ReferralLink(e.settings.BotUsername, rec.UserID)
	res := &Result{Text: msgReferralScreen(link, rec, e.settings)}

	var rows [][]Button
	if rec.ReferrerID == nil && !rec.Participated {
		rows = append(rows, []Button{{Text: "🔑 Ввести реферальный код", Data: mustCallback(EnterReferral{})}})
	}
	res.Buttons = append(rows, backToMenu()...)

	png, err := ReferralQR(link)
	if err != nil {
		logger.WithError(err).Warn("QR generation failed")
		return res
	}
	res.Photo = png
	return res
}

func (e *Engine) history(ctx context.Context, logger *log.Entry, rec *ledger.Record) *Result {
	entries, err := e.store.History(ctx, rec.UserID, historyLimit)
	if err != nil {
		return e.fail(logger, err)
	}
	return &Result{
		Text:    msgHistory(entries, e.settings.TokenName, e.settings.Location),
		Buttons: backToMenu(),
	}
}

func (e *Engine) taskList(rec *ledger.Record) *Result {
	if rec.Participated {
		return alreadyParticipated()
	}
	var rows [][]Button
	for t := 1; t <= ledger.TaskCount; t++ {
		if rec.Done(t) {
			continue
		}
		rows = append(rows, []Button{{
			Text: fmt.Sprintf("%d. %s", t, taskTitle(t)),
			Data: mustCallback(NavigateTo{Task: t}),
		}})
	}
	rows = append(rows, []Button{{Text: "🔍 Проверить задания", Data: mustCallback(CheckTasks{})}})
	rows = append(rows, backToMenu()...)
	return &Result{Text: msgTaskList(rec, e.settings.Rules), Buttons: rows, Edit: true}
}

// navigate показывает карточку задания. Ничего не начисляет.
func (e *Engine) navigate(rec *ledger.Record, task int) *Result {
	if rec.Participated {
		return alreadyParticipated()
	}
	if task < 1 || task > ledger.TaskCount {
		return &Result{Outcome: OutcomeValidation, Text: msgInvalidTask, Buttons: backToTasks()}
	}
	if rec.Done(task) {
		return &Result{Outcome: OutcomeAlreadyDone, Text: msgTaskAlreadyDone, Buttons: backToTasks(), Edit: true}
	}

	var rows [][]Button
	if url := e.taskURL(task); url != "" {
		rows = append(rows, []Button{{Text: "🔗 Открыть", URL: url}})
	}
	doText := "✅ Выполнено"
	if task == TaskWallet {
		doText = "💳 Отправить кошелёк"
	}
	rows = append(rows, []Button{{Text: doText, Data: mustCallback(CompleteTask{Task: task})}})
	rows = append(rows, backToTasks()...)
	return &Result{Text: msgTaskCard(task, e.settings), Buttons: rows, Edit: true}
}

func (e *Engine) completeTask(ctx context.Context, logger *log.Entry, rec *ledger.Record, task int) *Result {
	if rec.Participated {
		return alreadyParticipated()
	}
	if task < 1 || task > ledger.TaskCount {
		return &Result{Outcome: OutcomeValidation, Text: msgInvalidTask, Buttons: backToTasks()}
	}
	if rec.Done(task) {
		return &Result{Outcome: OutcomeAlreadyDone, Text: msgTaskAlreadyDone, Buttons: backToTasks()}
	}
	if err := e.settings.Rules.Gate(rec, task); err != nil {
		return e.gateFailed(rec, err)
	}

	switch task {
	case TaskGroup, TaskChannel:
		chat := e.settings.GroupID
		if task == TaskChannel {
			chat = e.settings.ChannelID
		}
		ok, err := e.members.IsMember(ctx, chat, rec.UserID)
		if err != nil {
			logger.WithError(err).WithField("chat", chat).Warn("membership check failed")
			return &Result{Outcome: OutcomeRetry, Text: msgRetry, Buttons: e.retryButtons(task)}
		}
		if !ok {
			return &Result{Outcome: OutcomeNotMember, Text: msgNotMember(task, e.settings), Buttons: e.retryButtons(task)}
		}
		return e.setTask(ctx, logger, rec, task, "")

	case TaskFollowX:
		return e.prompt(ctx, logger, rec.UserID, PendingXHandle, msgAskHandle)

	case TaskRetweet:
		return e.setTask(ctx, logger, rec, task, "")

	case TaskWallet:
		return e.prompt(ctx, logger, rec.UserID, PendingWallet, msgAskWallet)
	}
	return &Result{Outcome: OutcomeValidation, Text: msgInvalidTask}
}

func (e *Engine) setTask(ctx context.Context, logger *log.Entry, rec *ledger.Record, task int, handle string) *Result {
	upd, err := e.store.SetTaskFlag(ctx, rec.UserID, ledger.TaskUpdate{Task: task, XHandle: handle})
	if err != nil {
		return e.fail(logger, err)
	}
	next := upd.CurrentTask

	logger.WithFields(log.Fields{"task": task, "balance": upd.Balance}).Info("Задание выполнено")

	var rows [][]Button
	if next <= ledger.TaskCount {
		rows = append(rows, []Button{{
			Text: fmt.Sprintf("➡️ Задание %d", next),
			Data: mustCallback(NavigateTo{Task: next}),
		}})
	}
	rows = append(rows, backToTasks()...)
	return &Result{
		Text:    msgTaskDone(task, e.settings.Rewards.PerTask, upd.Balance, e.settings.TokenName),
		Buttons: rows,
	}
}

func (e *Engine) checkTasks(ctx context.Context, logger *log.Entry, rec *ledger.Record) *Result {
	if rec.Participated {
		return alreadyParticipated()
	}

	if len(missingTasks(rec, ledger.TaskCount)) == 0 {
		res, err := e.store.SetParticipated(ctx, rec.UserID)
		if err != nil {
			return e.fail(logger, err)
		}
		e.clearPending(ctx, logger, rec.UserID)
		e.afterFinalize(logger, rec, res)
		return &Result{Text: msgFinalized(res, e.settings.TokenName), Buttons: backToMenu()}
	}

	if missing := missingTasks(rec, TaskWallet-1); len(missing) > 0 {
		return e.missingResult(missing)
	}
	return e.prompt(ctx, logger, rec.UserID, PendingWallet, msgAskWallet)
}

func (e *Engine) enterReferral(ctx context.Context, logger *log.Entry, rec *ledger.Record) *Result {
	if rec.Participated {
		return alreadyParticipated()
	}
	if rec.ReferrerID != nil {
		return &Result{Outcome: OutcomeConflict, Text: msgReferralUsed, Buttons: backToMenu()}
	}
	return e.prompt(ctx, logger, rec.UserID, PendingReferral, msgAskReferral)
}

func (e *Engine) submitReferral(ctx context.Context, logger *log.Entry, rec *ledger.Record, code string) *Result {
	if rec.Participated {
		e.clearPending(ctx, logger, rec.UserID)
		return alreadyParticipated()
	}
	referrerID, err := ParseReferralCode(code)
	if err != nil {
		return e.fail(logger, err)
	}

	link, err := e.store.LinkReferral(ctx, rec.UserID, referrerID)
	if err != nil {
		if errors.Is(err, common.ErrReferralAlreadySet) || errors.Is(err, common.ErrAlreadyParticipated) {
			e.clearPending(ctx, logger, rec.UserID)
		}
		return e.fail(logger, err)
	}
	e.clearPending(ctx, logger, rec.UserID)
	e.notifyReferrerJoined(rec, link)

	logger.WithField("referrer_id", referrerID).Info("Реферал привязан")
	return &Result{Text: msgReferralLinked(link, e.settings.TokenName), Buttons: mainMenu()}
}

func (e *Engine) submitHandle(ctx context.Context, logger *log.Entry, rec *ledger.Record, raw string) *Result {
	if rec.Participated {
		e.clearPending(ctx, logger, rec.UserID)
		return alreadyParticipated()
	}
	if rec.Task3 {
		e.clearPending(ctx, logger, rec.UserID)
		return &Result{Outcome: OutcomeAlreadyDone, Text: msgTaskAlreadyDone, Buttons: backToTasks()}
	}
	if err := e.settings.Rules.Gate(rec, TaskFollowX); err != nil {
		return e.gateFailed(rec, err)
	}
	handle, err := NormalizeHandle(raw)
	if err != nil {
		return e.fail(logger, err)
	}

	res := e.setTask(ctx, logger, rec, TaskFollowX, handle)
	if res.Outcome == OutcomeSystemError {
		return res
	}
	e.clearPending(ctx, logger, rec.UserID)
	if res.Outcome == OutcomeOK {
		e.notifier.NotifyAdmins(msgAdminHandle(displayName(rec), handle))
	}
	return res
}

func (e *Engine) submitWallet(ctx context.Context, logger *log.Entry, rec *ledger.Record, address string) *Result {
	if rec.Participated {
		e.clearPending(ctx, logger, rec.UserID)
		return alreadyParticipated()
	}
	if missing := missingTasks(rec, TaskWallet-1); len(missing) > 0 {
		return e.missingResult(missing)
	}

	res, err := e.store.Finalize(ctx, rec.UserID, address)
	if err != nil {
		return e.fail(logger, err)
	}
	e.clearPending(ctx, logger, rec.UserID)
	e.afterFinalize(logger, rec, res)
	return &Result{Text: msgFinalized(res, e.settings.TokenName), Buttons: backToMenu()}
}

// textInput направляет свободный текст по ожидаемому вводу.
func (e *Engine) textInput(ctx context.Context, logger *log.Entry, rec *ledger.Record, text string) *Result {
	pending, err := e.sessions.Get(ctx, rec.UserID)
	if err != nil {
		logger.WithError(err).Error("session read failed")
		return &Result{Outcome: OutcomeRetry, Text: msgSystemError}
	}

	switch pending {
	case PendingWallet:
		return e.submitWallet(ctx, logger, rec, text)
	case PendingXHandle:
		return e.submitHandle(ctx, logger, rec, text)
	case PendingReferral:
		return e.submitReferral(ctx, logger, rec, text)
	}
	return &Result{Outcome: OutcomeValidation, Text: msgUseMenu, Buttons: mainMenu()}
}

// afterFinalize — уведомления после коммита. Ошибки доставки на награды не влияют.
func (e *Engine) afterFinalize(logger *log.Entry, rec *ledger.Record, res *ledger.FinalizeResult) {
	logger.WithFields(log.Fields{
		"balance":  res.Balance,
		"credited": res.Credited,
	}).Info("Участие завершено")

	e.notifier.NotifyAdmins(msgAdminCompleted(displayName(rec), res))
	if res.ReferrerID != nil && res.ReferrerCredited > 0 {
		e.notifier.NotifyUser(*res.ReferrerID,
			msgReferrerCompleted(displayName(rec), res.ReferrerCredited, res.ReferrerBalance, e.settings.TokenName))
	}
}

func (e *Engine) notifyReferrerJoined(rec *ledger.Record, link *ledger.LinkResult) {
	e.notifier.NotifyUser(link.ReferrerID,
		msgReferrerJoined(displayName(rec), link.Bonus, link.Referrals, e.settings.TokenName))
}

func (e *Engine) prompt(ctx context.Context, logger *log.Entry, userID int64, p PendingInput, text string) *Result {
	if err := e.sessions.Set(ctx, userID, p); err != nil {
		logger.WithError(err).WithField("pending", string(p)).Error("session write failed")
		return systemError()
	}
	return &Result{Outcome: OutcomePrompt, Text: text}
}

func (e *Engine) clearPending(ctx context.Context, logger *log.Entry, userID int64) {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		logger.WithError(err).Warn("session clear failed")
	}
}

func (e *Engine) gateFailed(rec *ledger.Record, err error) *Result {
	if errors.Is(err, common.ErrTasksIncomplete) {
		return e.missingResult(missingTasks(rec, TaskWallet-1))
	}
	text := msgTask4Locked
	if e.settings.Rules.StrictOrder {
		text = msgStrictLocked
	}
	return &Result{Outcome: OutcomeLocked, Text: text, Buttons: backToTasks()}
}

func (e *Engine) missingResult(missing []int) *Result {
	var rows [][]Button
	for _, t := range missing {
		rows = append(rows, []Button{{
			Text: fmt.Sprintf("%d. %s", t, taskTitle(t)),
			Data: mustCallback(NavigateTo{Task: t}),
		}})
	}
	rows = append(rows, backToTasks()...)
	return &Result{Outcome: OutcomeLocked, Text: msgTasksIncomplete(missing), Buttons: rows}
}

// fail сопоставляет ошибку хранилища с ответом пользователю.
func (e *Engine) fail(logger *log.Entry, err error) *Result {
	switch {
	case errors.Is(err, common.ErrAlreadyParticipated):
		return alreadyParticipated()
	case errors.Is(err, common.ErrTaskAlreadyDone):
		return &Result{Outcome: OutcomeAlreadyDone, Text: msgTaskAlreadyDone, Buttons: backToTasks()}
	case errors.Is(err, common.ErrTaskLocked):
		return &Result{Outcome: OutcomeLocked, Text: msgStrictLocked, Buttons: backToTasks()}
	case errors.Is(err, common.ErrTasksIncomplete):
		return &Result{Outcome: OutcomeLocked, Text: msgNotAllTasks, Buttons: backToTasks()}
	case errors.Is(err, common.ErrInvalidWallet):
		return &Result{Outcome: OutcomeValidation, Text: msgBadWallet}
	case errors.Is(err, common.ErrInvalidHandle):
		return &Result{Outcome: OutcomeValidation, Text: msgBadHandle}
	case errors.Is(err, common.ErrInvalidTask):
		return &Result{Outcome: OutcomeValidation, Text: msgInvalidTask, Buttons: backToTasks()}
	case errors.Is(err, common.ErrInvalidReferralCode):
		return &Result{Outcome: OutcomeValidation, Text: msgBadReferral}
	case errors.Is(err, common.ErrSelfReferral):
		return &Result{Outcome: OutcomeValidation, Text: msgSelfReferral}
	case errors.Is(err, common.ErrReferralAlreadySet):
		return &Result{Outcome: OutcomeConflict, Text: msgReferralUsed, Buttons: backToMenu()}
	case errors.Is(err, common.ErrReferrerNotFound):
		return &Result{Outcome: OutcomeNotFound, Text: msgReferrerNotFound}
	case errors.Is(err, common.ErrUserNotFound):
		logger.WithError(err).Warn("user vanished between reads")
		return notStarted()
	}
	logger.WithError(err).Error("ledger operation failed")
	return systemError()
}

func (e *Engine) taskURL(task int) string {
	switch task {
	case TaskGroup:
		return chatURL(e.settings.GroupID)
	case TaskChannel:
		return chatURL(e.settings.ChannelID)
	case TaskFollowX:
		if e.settings.XAccount == "" {
			return ""
		}
		return "https://x.com/" + trimAt(e.settings.XAccount)
	case TaskRetweet:
		return e.settings.XPinnedPostURL
	}
	return ""
}

// chatURL — ссылка t.me для @username; у числовых id публичной ссылки нет.
func chatURL(ref string) string {
	if len(ref) > 1 && ref[0] == '@' {
		return "https://t.me/" + ref[1:]
	}
	return ""
}

func trimAt(s string) string {
	if len(s) > 0 && s[0] == '@' {
		return s[1:]
	}
	return s
}

func (e *Engine) retryButtons(task int) [][]Button {
	var rows [][]Button
	if url := e.taskURL(task); url != "" {
		rows = append(rows, []Button{{Text: "🔗 Открыть", URL: url}})
	}
	rows = append(rows, []Button{{Text: "🔄 Проверить снова", Data: mustCallback(CompleteTask{Task: task})}})
	return append(rows, backToTasks()...)
}

func mainMenu() [][]Button {
	return [][]Button{
		{{Text: "🎁 Задания airdrop", Data: mustCallback(ShowTasks{})}},
		{
			{Text: "💰 Баланс", Data: mustCallback(ShowBalance{})},
			{Text: "🤝 Рефералы", Data: mustCallback(ShowReferral{})},
		},
		{
			{Text: "📜 История", Data: mustCallback(ShowHistory{})},
			{Text: "📋 Условия", Data: mustCallback(ShowTerms{})},
		},
	}
}

func backToMenu() [][]Button {
	return [][]Button{{{Text: "⬅️ Меню", Data: mustCallback(ShowMenu{})}}}
}

func backToTasks() [][]Button {
	return [][]Button{{{Text: "⬅️ К заданиям", Data: mustCallback(ShowTasks{})}}}
}

func alreadyParticipated() *Result {
	return &Result{Outcome: OutcomeAlreadyParticipated, Text: msgAlreadyParticipated, Buttons: backToMenu()}
}

func notStarted() *Result {
	return &Result{Outcome: OutcomeNotFound, Text: msgPressStart}
}

func systemError() *Result {
	return &Result{Outcome: OutcomeSystemError, Text: msgSystemError}
}
