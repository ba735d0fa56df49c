// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневный отчёт админам
// и очистку просроченных сессий ввода.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// purgeSchedule — очистка сессий раз в 5 минут
const purgeSchedule = "*/5 * * * *"

// Reporter формирует текст отчёта.
type Reporter interface {
	DailyReport(ctx context.Context) (string, error)
}

// Purger удаляет просроченные сессии (только для хранилища в памяти).
type Purger interface {
	Purge() int
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron           *cron.Cron
	loc            *time.Location
	reportSchedule string
	reporter       Reporter
	purger         Purger
	sendFunc       func(text string)
}

// NewScheduler создаёт планировщик в часовом поясе кампании.
// purger может быть nil (сессии в Redis истекают сами).
func NewScheduler(loc *time.Location, reportSchedule string, reporter Reporter, purger Purger, sendFunc func(text string)) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(reportSchedule); err != nil {
		return nil, fmt.Errorf("некорректное расписание отчёта %q: %w", reportSchedule, err)
	}

	return &Scheduler{
		cron:           cron.New(cron.WithLocation(loc)),
		loc:            loc,
		reportSchedule: reportSchedule,
		reporter:       reporter,
		purger:         purger,
		sendFunc:       sendFunc,
	}, nil
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.reportSchedule, func() { s.RunReport(ctx) }); err != nil {
		return fmt.Errorf("ошибка регистрации отчёта: %w", err)
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(purgeSchedule, s.RunPurge); err != nil {
			return fmt.Errorf("ошибка регистрации очистки сессий: %w", err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"timezone": s.loc.String(),
		"report":   s.reportSchedule,
	}).Info("Планировщик задач запущен")
	return nil
}

// RunReport отправляет ежедневный отчёт.
func (s *Scheduler) RunReport(ctx context.Context) {
	log.Info("[CRON] Ежедневный отчёт")
	text, err := s.reporter.DailyReport(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка формирования отчёта")
		return
	}
	s.sendFunc(text)
}

// RunPurge удаляет просроченные сессии.
func (s *Scheduler) RunPurge() {
	if n := s.purger.Purge(); n > 0 {
		log.WithField("removed", n).Debug("[CRON] Очищены просроченные сессии")
	}
}

// Entries — число зарегистрированных задач.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
