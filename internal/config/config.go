// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// при локальном запуске дополнительно подхватывается файл .env (godotenv).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную

	// --- Campaign ---
	// Группа и канал: @username или числовой id (-100...)
	GroupID        string `envconfig:"GROUP_ID" default:"@soliumcoinchat"`
	ChannelID      string `envconfig:"CHANNEL_ID" default:"@soliumcoin"`
	XAccount       string `envconfig:"X_ACCOUNT" default:"@soliumcoin"`
	XPinnedPostURL string `envconfig:"X_PINNED_POST_URL" default:"https://x.com/soliumcoin"`
	TokenName      string `envconfig:"TOKEN_NAME" default:"Solium"`

	RewardPerTask   int64 `envconfig:"REWARD_PER_TASK" default:"20"`
	CompletionBonus int64 `envconfig:"COMPLETION_BONUS" default:"100"`
	ReferralBonus   int64 `envconfig:"REFERRAL_BONUS" default:"20"`

	// Задание 4 (ретвит) открывается только после задания 3 (подписка в X)
	Task4RequiresTask3 bool `envconfig:"TASK4_REQUIRES_TASK3" default:"true"`
	// Строгий порядок: задание n требует все задания < n
	TasksStrictOrder bool `envconfig:"TASKS_STRICT_ORDER" default:"false"`

	// --- Database ---
	DBDriver string `envconfig:"DB_DRIVER" default:"postgres"`
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"airdrop_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"20"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"airdrop.db"`

	// --- Sessions ---
	// Пустой REDIS_ADDR — ожидание ввода хранится в памяти процесса
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"15m"`

	// --- Timeouts ---
	NotifyTimeout     time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
	MembershipTimeout time.Duration `envconfig:"MEMBERSHIP_TIMEOUT" default:"5s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Istanbul"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	ReportCron  string `envconfig:"REPORT_CRON" default:"0 9 * * *"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"20"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не задан")
	}
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS не задан")
	}
	if strings.TrimSpace(c.GroupID) == "" || strings.TrimSpace(c.ChannelID) == "" {
		return fmt.Errorf("GROUP_ID и CHANNEL_ID обязательны")
	}
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для DB_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH обязателен для DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("неизвестный DB_DRIVER %q (postgres|sqlite)", c.DBDriver)
	}
	if c.RewardPerTask <= 0 || c.CompletionBonus <= 0 || c.ReferralBonus <= 0 {
		return fmt.Errorf("награды REWARD_PER_TASK/COMPLETION_BONUS/REFERRAL_BONUS должны быть > 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	if c.SessionTTL <= 0 || c.NotifyTimeout <= 0 || c.MembershipTimeout <= 0 {
		return fmt.Errorf("таймауты SESSION_TTL/NOTIFY_TIMEOUT/MEMBERSHIP_TIMEOUT должны быть > 0")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	} else if err != nil {
		log.Debug("Файл .env не найден, используем переменные окружения")
	}
	return Process()
}

// Process заполняет Config только из окружения, без .env.
func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
