package campaign

import (
	"fmt"
	"strings"
	"time"

	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/features/ledger"
)

// Тексты ответов пользователю.

const (
	msgMenu                = "🚀 Добро пожаловать в Solium Airdrop! Выберите пункт меню:"
	msgAlreadyParticipated = "🎉 Вы уже участвуете в airdrop! Ожидайте распределения наград."
	msgSystemError         = "❌ Произошла ошибка. Попробуйте позже."
	msgRetry               = "⏳ Не удалось проверить подписку. Попробуйте ещё раз через минуту."
	msgTaskAlreadyDone     = "✅ Это задание уже выполнено."
	msgTask4Locked         = "🔒 Сначала выполните задание 3 (подписка в X)."
	msgStrictLocked        = "🔒 Задания выполняются по порядку. Сначала завершите предыдущие."
	msgInvalidTask         = "❌ Такого задания нет."
	msgAskHandle           = "🐦 Отправьте ваш ник в X в формате @username"
	msgBadHandle           = "❌ Ник должен быть в формате @username (до 15 символов: латиница, цифры, _). Попробуйте ещё раз."
	msgAskWallet           = "💳 Отправьте адрес вашего BSC-кошелька (0x..., 42 символа)."
	msgBadWallet           = "❌ Некорректный адрес. Нужен BSC-адрес вида 0x и 40 шестнадцатеричных символов. Попробуйте ещё раз."
	msgAskReferral         = "🔑 Отправьте реферальный код (например, ref123456)."
	msgBadReferral         = "❌ Некорректный реферальный код. Пример: ref123456"
	msgSelfReferral        = "❌ Нельзя использовать собственный реферальный код."
	msgReferralUsed        = "ℹ️ Вы уже использовали реферальный код."
	msgReferrerNotFound    = "❌ Пользователь с таким кодом не найден."
	msgUseMenu             = "ℹ️ Пользуйтесь кнопками меню."
	msgNoHistory           = "📋 У вас пока нет начислений."
	msgNotAllTasks         = "⚠️ Сначала выполните задания 1–4."
	msgPressStart          = "👋 Вы ещё не начали участие. Нажмите /start, чтобы начать заново."
)

var taskTitles = [ledger.TaskCount]string{
	"Вступить в Telegram-группу",
	"Подписаться на Telegram-канал",
	"Подписаться на аккаунт в X",
	"Сделать ретвит закреплённого поста",
	"Отправить адрес BSC-кошелька",
}

func taskTitle(task int) string {
	if task < 1 || task > ledger.TaskCount {
		return ""
	}
	return taskTitles[task-1]
}

func msgWelcome(token string) string {
	return fmt.Sprintf("🚀 Добро пожаловать в Solium Airdrop!\n\nВыполняйте задания и получайте %s. Выберите пункт меню:", token)
}

func msgTerms(s Settings) string {
	var sb strings.Builder
	sb.WriteString("📋 Условия airdrop:\n\n")
	for i, title := range taskTitles {
		sb.WriteString(fmt.Sprintf("%d. %s — %s\n", i+1, title, common.FormatAmount(s.Rewards.PerTask, s.TokenName)))
	}
	sb.WriteString(fmt.Sprintf("\n🎁 Бонус за выполнение всех заданий: %s\n", common.FormatAmount(s.Rewards.Completion, s.TokenName)))
	sb.WriteString(fmt.Sprintf("🤝 За каждого приглашённого: %s при регистрации и %s, когда он завершит задания\n",
		common.FormatAmount(s.Rewards.Referral, s.TokenName), common.FormatAmount(s.Rewards.Referral, s.TokenName)))
	sb.WriteString("\nЗадания 3 и 4 проверяются администрацией вручную.")
	return sb.String()
}

func msgBalance(rec *ledger.Record, token string) string {
	return fmt.Sprintf("💰 Баланс: %s\n🤝 Приглашено: %d\n📍 Этап: %s",
		common.FormatBalance(rec.Balance, token), rec.Referrals, stageLabel(rec))
}

func stageLabel(rec *ledger.Record) string {
	switch {
	case rec.Participated:
		return "участие завершено"
	case rec.CurrentTask > ledger.TaskCount:
		return "все задания выполнены"
	}
	return fmt.Sprintf("задание %d из %d", rec.CurrentTask, ledger.TaskCount)
}

func msgTaskList(rec *ledger.Record, rules Rules) string {
	var sb strings.Builder
	sb.WriteString("🎁 Задания airdrop:\n\n")
	for t := 1; t <= ledger.TaskCount; t++ {
		mark := "⬜"
		switch {
		case rec.Done(t):
			mark = "✅"
		case rules.Gate(rec, t) != nil:
			mark = "🔒"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s\n", mark, t, taskTitle(t)))
	}
	sb.WriteString("\nВыберите задание или нажмите «Проверить задания».")
	return sb.String()
}

func msgTaskCard(task int, s Settings) string {
	var hint string
	switch task {
	case TaskGroup:
		hint = fmt.Sprintf("Вступите в группу %s и нажмите «Выполнено».", s.GroupID)
	case TaskChannel:
		hint = fmt.Sprintf("Подпишитесь на канал %s и нажмите «Выполнено».", s.ChannelID)
	case TaskFollowX:
		hint = fmt.Sprintf("Подпишитесь на %s в X, затем нажмите «Выполнено» и отправьте свой ник.", s.XAccount)
	case TaskRetweet:
		hint = "Сделайте ретвит закреплённого поста и нажмите «Выполнено»."
	case TaskWallet:
		hint = "Нажмите кнопку и отправьте адрес BSC-кошелька. После этого участие будет завершено."
	}
	return fmt.Sprintf("📌 Задание %d: %s\n\n%s\nНаграда: %s",
		task, taskTitle(task), hint, common.FormatAmount(s.Rewards.PerTask, s.TokenName))
}

func msgNotMember(task int, s Settings) string {
	where := s.GroupID
	if task == TaskChannel {
		where = s.ChannelID
	}
	return fmt.Sprintf("❌ Вы ещё не подписаны на %s. Подпишитесь и нажмите «Проверить снова».", where)
}

func msgTaskDone(task int, reward, balance int64, token string) string {
	return fmt.Sprintf("✅ Задание %d выполнено! %s\n💰 Баланс: %s",
		task, common.FormatAmount(reward, token), common.FormatBalance(balance, token))
}

func msgTasksIncomplete(missing []int) string {
	parts := make([]string, len(missing))
	for i, t := range missing {
		parts[i] = fmt.Sprintf("%d. %s", t, taskTitle(t))
	}
	return "⚠️ Не выполнены задания:\n" + strings.Join(parts, "\n")
}

func msgFinalized(res *ledger.FinalizeResult, token string) string {
	text := fmt.Sprintf("🎉 Поздравляем! Вы участвуете в airdrop.\n%s\n💰 Баланс: %s",
		common.FormatAmount(res.Credited, token), common.FormatBalance(res.Balance, token))
	if res.WalletAddress != "" {
		text += "\n💳 Кошелёк: " + res.WalletAddress
	}
	return text
}

func msgReferralScreen(link string, rec *ledger.Record, s Settings) string {
	return fmt.Sprintf("🤝 Ваша реферальная ссылка:\n%s\n\nПриглашено: %d\nЗа каждого приглашённого: %s при регистрации и %s после завершения заданий.",
		link, rec.Referrals,
		common.FormatAmount(s.Rewards.Referral, s.TokenName),
		common.FormatAmount(s.Rewards.Referral, s.TokenName))
}

func msgReferralLinked(res *ledger.LinkResult, token string) string {
	return fmt.Sprintf("🤝 Реферальный код принят! %s\n💰 Баланс: %s",
		common.FormatAmount(res.Bonus, token), common.FormatBalance(res.Balance, token))
}

func msgHistory(entries []ledger.Entry, token string, loc *time.Location) string {
	if len(entries) == 0 {
		return msgNoHistory
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние %d начислений:\n\n", len(entries)))
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. %s | %s | %s\n",
			i+1, common.FormatDateTime(e.CreatedAt, loc), common.FormatAmount(e.Amount, token), e.Description))
	}
	return sb.String()
}

// Уведомления

func msgReferrerJoined(newcomer string, bonus int64, referrals int, token string) string {
	return fmt.Sprintf("🤝 По вашей ссылке присоединился %s! %s\nВсего приглашено: %d",
		newcomer, common.FormatAmount(bonus, token), referrals)
}

func msgReferrerCompleted(newcomer string, bonus, balance int64, token string) string {
	return fmt.Sprintf("🎉 Ваш реферал %s завершил задания! %s\n💰 Баланс: %s",
		newcomer, common.FormatAmount(bonus, token), common.FormatBalance(balance, token))
}

func msgAdminHandle(user, handle string) string {
	return fmt.Sprintf("🐦 Задание 3: %s указал ник %s (проверьте подписку вручную)", user, handle)
}

func msgAdminCompleted(user string, res *ledger.FinalizeResult) string {
	text := fmt.Sprintf("✅ %s завершил участие, баланс %d", user, res.Balance)
	if res.WalletAddress != "" {
		text += ", кошелёк " + res.WalletAddress
	}
	return text
}

// displayName — "@username (id)" или просто id.
func displayName(rec *ledger.Record) string {
	if rec.Username != "" {
		return fmt.Sprintf("@%s (%d)", rec.Username, rec.UserID)
	}
	return fmt.Sprintf("%d", rec.UserID)
}
