// Package main — точка входа бота.
// Без подкоманды запускает бота; migrate, export и stats работают только с хранилищем.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"soliumcoin.org/airdrop-bot/internal/config"
)

func main() {
	// Настраиваем логирование
	setupLogging()

	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("Команда завершилась с ошибкой")
		os.Exit(1)
	}
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}

// loadConfig загружает конфигурацию и выставляет уровень логов из APP_LOG_LEVEL.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}
	return cfg, nil
}
