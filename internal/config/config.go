package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	JWTIssuer   string   `mapstructure:"JWT_ISSUER"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Effectiveness report window defaults, overridable per request.
	ReportLookbackDays int     `mapstructure:"REPORT_LOOKBACK_DAYS"`
	ReportMinLagDays   int     `mapstructure:"REPORT_MIN_LAG_DAYS"`
	ReportMaxLagDays   int     `mapstructure:"REPORT_MAX_LAG_DAYS"`
	ReportBucketDays   int     `mapstructure:"REPORT_BUCKET_DAYS"`
	ReportBaselineIOP  float64 `mapstructure:"REPORT_BASELINE_IOP"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REPORT_LOOKBACK_DAYS", 30)
	v.SetDefault("REPORT_MIN_LAG_DAYS", 30)
	v.SetDefault("REPORT_MAX_LAG_DAYS", 90)
	v.SetDefault("REPORT_BUCKET_DAYS", 7)
	v.SetDefault("REPORT_BASELINE_IOP", 22.0)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("REPORT_LOOKBACK_DAYS")
	v.BindEnv("REPORT_MIN_LAG_DAYS")
	v.BindEnv("REPORT_MAX_LAG_DAYS")
	v.BindEnv("REPORT_BUCKET_DAYS")
	v.BindEnv("REPORT_BASELINE_IOP")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is required so that real authentication is enforced, and the
// report window defaults must describe a usable search window.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf(
			"JWT_SECRET must be set when ENV is %q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.ReportLookbackDays <= 0 {
		return fmt.Errorf("REPORT_LOOKBACK_DAYS must be positive, got %d", c.ReportLookbackDays)
	}
	if c.ReportMinLagDays < 0 {
		return fmt.Errorf("REPORT_MIN_LAG_DAYS must not be negative, got %d", c.ReportMinLagDays)
	}
	if c.ReportMaxLagDays < c.ReportMinLagDays {
		return fmt.Errorf("REPORT_MAX_LAG_DAYS (%d) must not be less than REPORT_MIN_LAG_DAYS (%d)",
			c.ReportMaxLagDays, c.ReportMinLagDays)
	}
	if c.ReportBucketDays <= 0 {
		return fmt.Errorf("REPORT_BUCKET_DAYS must be positive, got %d", c.ReportBucketDays)
	}
	return nil
}
