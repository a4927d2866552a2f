package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/veil-vpn/veil/internal/shared/config"
)

type Config struct {
	Server   sharedConfig.ServerConfig   `mapstructure:"server"`
	Database sharedConfig.DatabaseConfig `mapstructure:"database"`
	Logger   sharedConfig.LoggerConfig   `mapstructure:"logger"`
	Redis    sharedConfig.RedisConfig    `mapstructure:"redis"`
	Panel    sharedConfig.PanelConfig    `mapstructure:"panel"`
	Billing  sharedConfig.BillingConfig  `mapstructure:"billing"`
	Sweep    sharedConfig.SweepConfig    `mapstructure:"sweep"`
	Telegram sharedConfig.TelegramConfig `mapstructure:"telegram"`
	Nodes    []sharedConfig.NodeConfig   `mapstructure:"nodes"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("VEIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow env parameter to override server mode if provided
	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func validate(cfg *Config) error {
	if cfg.Panel.Host == "" {
		return fmt.Errorf("panel.host is required")
	}
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("at least one node must be configured")
	}
	seen := make(map[string]struct{}, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.Host == "" || n.MaxUsers <= 0 {
			return fmt.Errorf("node %q needs a host and a positive max_users", n.Name)
		}
		if _, dup := seen[n.Host]; dup {
			return fmt.Errorf("duplicate node host %q", n.Host)
		}
		seen[n.Host] = struct{}{}
	}
	if cfg.Billing.PlanPricePerDay <= 0 {
		return fmt.Errorf("billing.plan_price_per_day must be positive")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "veil_dev")
	viper.SetDefault("database.path", "veil.db")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Panel defaults
	viper.SetDefault("panel.timeout_seconds", 10)

	// Billing defaults
	viper.SetDefault("billing.plan_price_per_day", 5)
	viper.SetDefault("billing.initial_balance", 0)
	viper.SetDefault("billing.referral_rate", 0.15)
	viper.SetDefault("billing.min_top_up", 10)
	viper.SetDefault("billing.max_top_up", 10000)
	viper.SetDefault("billing.timezone", "UTC")
	viper.SetDefault("billing.trial_referee_days", 1)
	viper.SetDefault("billing.trial_referrer_days", 2)
	viper.SetDefault("billing.max_devices_per_user", 0)

	// Sweep defaults
	viper.SetDefault("sweep.trial_interval_minutes", 1)
	viper.SetDefault("sweep.expiry_interval_minutes", 60)
	viper.SetDefault("sweep.reconcile_interval_hours", 6)
	viper.SetDefault("sweep.warning_window_hours", 24)
	viper.SetDefault("sweep.warning_cooldown_hours", 20)

	// Telegram defaults (empty token disables notifications)
	viper.SetDefault("telegram.bot_token", "")
}
