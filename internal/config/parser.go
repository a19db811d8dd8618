// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fgeck/ciscoprov/internal/models"
)

// Defaults for settings not present in the configuration file.
const (
	DefaultBaud       = 9600
	DefaultRSAModulus = 1024
	DefaultSSHPort    = 22
	DefaultSSHTimeout = 15 * time.Second
	DefaultUserPrefix = "R_"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.ProvisionConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.ProvisionConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// LoadDefaults returns the configuration used when no file is given.
func (p *Parser) LoadDefaults() (*models.ProvisionConfig, error) {
	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.ProvisionConfig, error) {
	cfg := &models.ProvisionConfig{}

	// Worklist location.
	cfg.Worklist = models.WorklistSettings{
		Dir:  p.expandEnv(p.v.GetString("worklist.dir")),
		File: p.expandEnv(p.v.GetString("worklist.file")),
	}
	if cfg.Worklist.Dir == "" {
		cfg.Worklist.Dir = "."
	}

	// Serial line.
	cfg.Serial = models.SerialSettings{
		DefaultBaud:   p.v.GetInt("serial.default_baud"),
		ReadTimeout:   p.durationOr("serial.read_timeout", time.Second),
		OpenSettle:    p.durationOr("serial.open_settle", 2*time.Second),
		FallbackPorts: p.v.GetStringSlice("serial.fallback_ports"),
	}
	if cfg.Serial.DefaultBaud == 0 {
		cfg.Serial.DefaultBaud = DefaultBaud
	}

	// Username policy. Sync is on unless explicitly disabled.
	cfg.Username = models.UsernamePolicy{
		SyncWithHostname: true,
		RequiredPrefix:   DefaultUserPrefix,
	}
	if p.v.IsSet("username.sync_with_hostname") {
		cfg.Username.SyncWithHostname = p.v.GetBool("username.sync_with_hostname")
	}
	if p.v.IsSet("username.required_prefix") {
		cfg.Username.RequiredPrefix = p.v.GetString("username.required_prefix")
	}

	// Channel timing.
	def := models.DefaultTiming()
	cfg.Timing = models.TimingSettings{
		PollInterval:         p.durationOr("timing.poll_interval", def.PollInterval),
		CommandTimeout:       p.durationOr("timing.command_timeout", def.CommandTimeout),
		EnableTimeout:        p.durationOr("timing.enable_timeout", def.EnableTimeout),
		EnableSettle:         p.durationOr("timing.enable_settle", def.EnableSettle),
		EnablePasswordSettle: p.durationOr("timing.enable_password_settle", def.EnablePasswordSettle),
		WakeSettle:           p.durationOr("timing.wake_settle", def.WakeSettle),
		PagerSettle:          p.durationOr("timing.pager_settle", def.PagerSettle),
		InventorySettle:      p.durationOr("timing.inventory_settle", def.InventorySettle),
		ManualSettle:         p.durationOr("timing.manual_settle", def.ManualSettle),
	}

	cfg.Crypto = models.CryptoSettings{
		RSAModulus: p.v.GetInt("crypto.rsa_modulus"),
	}
	if cfg.Crypto.RSAModulus == 0 {
		cfg.Crypto.RSAModulus = DefaultRSAModulus
	}

	// Parse optional SSH verification config.
	if p.v.IsSet("ssh_verify") {
		cfg.SSHVerify = &models.SSHVerifyConfig{
			Port:    p.v.GetInt("ssh_verify.port"),
			Timeout: p.v.GetDuration("ssh_verify.timeout"),
			Command: p.v.GetString("ssh_verify.command"),
		}
		if cfg.SSHVerify.Port == 0 {
			cfg.SSHVerify.Port = DefaultSSHPort
		}
		if cfg.SSHVerify.Timeout == 0 {
			cfg.SSHVerify.Timeout = DefaultSSHTimeout
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return cfg, nil
}

func (p *Parser) durationOr(key string, def time.Duration) time.Duration {
	if !p.v.IsSet(key) {
		return def
	}
	return p.v.GetDuration(key)
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.ProvisionConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Serial.DefaultBaud <= 0 {
		return fmt.Errorf("serial.default_baud must be positive")
	}

	t := cfg.Timing
	if t.PollInterval <= 0 {
		return fmt.Errorf("timing.poll_interval must be positive")
	}
	if t.CommandTimeout < t.PollInterval {
		return fmt.Errorf("timing.command_timeout must be at least timing.poll_interval")
	}
	if t.EnableTimeout < t.PollInterval {
		return fmt.Errorf("timing.enable_timeout must be at least timing.poll_interval")
	}
	for name, d := range map[string]time.Duration{
		"serial.read_timeout":           cfg.Serial.ReadTimeout,
		"serial.open_settle":            cfg.Serial.OpenSettle,
		"timing.enable_settle":          t.EnableSettle,
		"timing.enable_password_settle": t.EnablePasswordSettle,
		"timing.wake_settle":            t.WakeSettle,
		"timing.pager_settle":           t.PagerSettle,
		"timing.inventory_settle":       t.InventorySettle,
		"timing.manual_settle":          t.ManualSettle,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if cfg.Crypto.RSAModulus < 360 || cfg.Crypto.RSAModulus > 4096 {
		return fmt.Errorf("crypto.rsa_modulus must be between 360 and 4096")
	}

	if cfg.SSHVerify != nil && (cfg.SSHVerify.Port < 1 || cfg.SSHVerify.Port > 65535) {
		return fmt.Errorf("ssh_verify.port must be between 1 and 65535")
	}

	if cfg.Telegram != nil && (cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "") {
		return fmt.Errorf("telegram requires bot_token and chat_id")
	}

	return nil
}
