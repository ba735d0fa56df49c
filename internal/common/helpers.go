// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование чисел и сумм, работа с часовым поясом.
package common

import (
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// LoadLocation загружает часовой пояс по имени из конфига.
// Если tzdata недоступна (alpine без пакета tzdata) — используем UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в заданном поясе.
// Используется для отображения истории начислений.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// Truncate обрезает строку до n символов (не байт) и добавляет "...".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
