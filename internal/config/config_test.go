package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "42, 7")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "test.db")
}

func TestProcess_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Process()
	require.NoError(t, err)

	assert.Equal(t, []int64{42, 7}, cfg.AdminIDs)
	assert.True(t, cfg.IsAdmin(7))
	assert.False(t, cfg.IsAdmin(8))
	assert.Equal(t, int64(20), cfg.RewardPerTask)
	assert.Equal(t, int64(100), cfg.CompletionBonus)
	assert.Equal(t, int64(20), cfg.ReferralBonus)
	assert.True(t, cfg.Task4RequiresTask3)
	assert.False(t, cfg.TasksStrictOrder)
	assert.Equal(t, "Solium", cfg.TokenName)
	assert.Equal(t, 20, cfg.BotMaxInflight)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.Empty(t, cfg.RedisAddr)
}

func TestProcess_MissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("ADMIN_IDS", "1")

	_, err := Process()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestProcess_BadAdminIDs(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ADMIN_IDS", "42,abc")

	_, err := Process()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_IDS")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TelegramBotToken:        "123:abc",
			AdminIDs:                []int64{1},
			GroupID:                 "@group",
			ChannelID:               "@channel",
			DBDriver:                DriverPostgres,
			DBPassword:              "secret",
			DBMaxConns:              20,
			DBMinConns:              2,
			RewardPerTask:           20,
			CompletionBonus:         100,
			ReferralBonus:           20,
			BotMaxInflight:          20,
			BotUpdateTimeoutSeconds: 60,
			RateLimitRequests:       10,
			RateLimitWindow:         time.Minute,
			SessionTTL:              time.Minute,
			NotifyTimeout:           time.Second,
			MembershipTimeout:       time.Second,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty token", func(c *Config) { c.TelegramBotToken = "" }},
		{"no admins", func(c *Config) { c.AdminIDs = nil }},
		{"no group", func(c *Config) { c.GroupID = " " }},
		{"postgres without password", func(c *Config) { c.DBPassword = "" }},
		{"min conns above max", func(c *Config) { c.DBMinConns = 30 }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"sqlite without path", func(c *Config) { c.DBDriver = DriverSQLite; c.SQLitePath = "" }},
		{"zero reward", func(c *Config) { c.RewardPerTask = 0 }},
		{"zero inflight", func(c *Config) { c.BotMaxInflight = 0 }},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DatabaseDSN())
}
