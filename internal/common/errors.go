// Package common — errors.go определяет ошибки, общие для всех модулей бота.
// Хранилище возвращает их (обёрнутыми через %w), движок кампании
// сопоставляет их через errors.Is с кодом результата и текстом для пользователя.
package common

import "errors"

// Ошибки учёта (баланс, пользователи)
var (
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
)

// Ошибки заданий
var (
	// ErrInvalidTask — номер задания вне диапазона 1..5 (или этап вне 1..6)
	ErrInvalidTask = errors.New("некорректный номер задания")
	// ErrTaskAlreadyDone — задание уже засчитано
	ErrTaskAlreadyDone = errors.New("задание уже выполнено")
	// ErrTaskLocked — задание недоступно, пока не выполнены предыдущие
	ErrTaskLocked = errors.New("задание пока недоступно")
	// ErrTasksIncomplete — для завершения не хватает выполненных заданий
	ErrTasksIncomplete = errors.New("не все задания выполнены")
	// ErrAlreadyParticipated — участие уже завершено, запись заморожена
	ErrAlreadyParticipated = errors.New("участие в airdrop уже завершено")
	// ErrInvalidWallet — адрес не похож на BSC-кошелёк
	ErrInvalidWallet = errors.New("некорректный адрес кошелька")
	// ErrInvalidHandle — ник в X не соответствует формату @name
	ErrInvalidHandle = errors.New("некорректный ник в X")
)

// Ошибки реферальной программы
var (
	// ErrSelfReferral — попытка пригласить самого себя
	ErrSelfReferral = errors.New("нельзя использовать свой реферальный код")
	// ErrReferralAlreadySet — пригласивший уже записан
	ErrReferralAlreadySet = errors.New("реферальный код уже использован")
	// ErrReferrerNotFound — пригласивший не найден
	ErrReferrerNotFound = errors.New("пригласивший пользователь не найден")
	// ErrInvalidReferralCode — код не разобран
	ErrInvalidReferralCode = errors.New("некорректный реферальный код")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
)
