package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"soliumcoin.org/airdrop-bot/internal/app"
	"soliumcoin.org/airdrop-bot/internal/common"
	"soliumcoin.org/airdrop-bot/internal/features/admin"
)

// Виды выгрузки для export --kind
const (
	exportUsers   = "users"
	exportWallets = "wallets"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "airdrop-bot",
		Short:         "Telegram-бот airdrop-кампании",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newStatsCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Запустить бота (long polling)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции и выйти",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			log.WithField("driver", cfg.DBDriver).Info("Миграции применены")
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var kind, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Выгрузить пользователей или адреса кошельков в JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != exportUsers && kind != exportWallets {
				return fmt.Errorf("неизвестный --kind %q: users или wallets", kind)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			service := admin.NewService(store, cfg.TokenName, common.LoadLocation(cfg.AppTimezone))
			var data []byte
			if kind == exportUsers {
				data, err = service.ExportUsers(cmd.Context())
			} else {
				data, err = service.ExportWallets(cmd.Context())
			}
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("ошибка записи %s: %w", out, err)
			}
			log.WithFields(log.Fields{"kind": kind, "file": out}).Info("Выгрузка сохранена")
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", exportUsers, "что выгружать (users|wallets)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "файл для записи (по умолчанию stdout)")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Показать статистику кампании",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			text, err := admin.NewService(store, cfg.TokenName, nil).StatsText(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

// runBot — основной режим: бот, HTTP и планировщик до сигнала остановки.
func runBot(parent context.Context) error {
	log.Info("=== Бот запускается ===")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	// Контекст отменяется по Ctrl+C / docker stop
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем приложение (БД, бот, сервисы, обработчики)
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать приложение: %w", err)
	}
	defer application.Close()

	log.Info("=== Бот готов к работе ===")
	if err := application.Run(ctx); err != nil {
		return err
	}

	log.Info("=== Бот остановлен ===")
	return nil
}
