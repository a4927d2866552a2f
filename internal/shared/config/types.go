package config

import "fmt"

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Driver selects the gorm dialect: "mysql" or "sqlite".
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	Path            string `mapstructure:"path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PanelConfig holds credentials and endpoint for the remote control-plane API.
type PanelConfig struct {
	Host           string `mapstructure:"host"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// NodeConfig describes one statically configured egress node.
type NodeConfig struct {
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	MaxUsers int    `mapstructure:"max_users"`
}

type BillingConfig struct {
	// PlanPricePerDay is charged per active device per day.
	PlanPricePerDay float64 `mapstructure:"plan_price_per_day"`
	InitialBalance  float64 `mapstructure:"initial_balance"`
	ReferralRate    float64 `mapstructure:"referral_rate"`
	MinTopUp        float64 `mapstructure:"min_top_up"`
	MaxTopUp        float64 `mapstructure:"max_top_up"`
	Timezone        string  `mapstructure:"timezone"`

	// TrialRefereeDays and TrialReferrerDays size the free configurations
	// granted when a referral link is attached.
	TrialRefereeDays  int `mapstructure:"trial_referee_days"`
	TrialReferrerDays int `mapstructure:"trial_referrer_days"`

	// MaxDevicesPerUser caps concurrently active devices; zero means no cap.
	MaxDevicesPerUser int `mapstructure:"max_devices_per_user"`
}

type SweepConfig struct {
	TrialIntervalMinutes   int `mapstructure:"trial_interval_minutes"`
	ExpiryIntervalMinutes  int `mapstructure:"expiry_interval_minutes"`
	ReconcileIntervalHours int `mapstructure:"reconcile_interval_hours"`
	WarningWindowHours     int `mapstructure:"warning_window_hours"`
	WarningCooldownHours   int `mapstructure:"warning_cooldown_hours"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}
