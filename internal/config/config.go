package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PW_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PW_DB_MAX_CONNS" default:"8"`

	// Company whose press coverage is monitored. Every IP in the catalog
	// belongs to this company.
	Company string `envconfig:"PW_COMPANY" default:"넥슨"`

	NaverClientID     string `envconfig:"NAVER_CLIENT_ID" default:""`
	NaverClientSecret string `envconfig:"NAVER_CLIENT_SECRET" default:""`

	RiskWindowHours int     `envconfig:"RISK_WINDOW_HOURS" default:"24"`
	WeightSentiment float64 `envconfig:"RISK_WEIGHT_S" default:"0.45"`
	WeightVolume    float64 `envconfig:"RISK_WEIGHT_V" default:"0.25"`
	WeightTheme     float64 `envconfig:"RISK_WEIGHT_T" default:"0.20"`
	WeightOutlet    float64 `envconfig:"RISK_WEIGHT_M" default:"0.10"`

	// EMA smoothing of the risk score. The low-sample variant is heuristic,
	// see RISK_LOW_SAMPLE_COUNT.
	EMAAlpha       float64 `envconfig:"RISK_EMA_ALPHA" default:"0.3"`
	LowSampleAlpha float64 `envconfig:"RISK_LOW_SAMPLE_ALPHA" default:"0.1"`
	LowSampleCount int     `envconfig:"RISK_LOW_SAMPLE_COUNT" default:"10"`

	SpikeZThreshold float64 `envconfig:"BURST_SPIKE_Z_THRESHOLD" default:"2.0"`

	BaseIntervalSeconds  int `envconfig:"BURST_BASE_INTERVAL_SECONDS" default:"600"`
	BurstIntervalSeconds int `envconfig:"BURST_INTERVAL_SECONDS" default:"120"`
	MaxBurstSeconds      int `envconfig:"BURST_MAX_DURATION_SECONDS" default:"7200"`

	SustainedLowThreshold  float64 `envconfig:"BURST_SUSTAINED_LOW_THRESHOLD" default:"55"`
	SustainedLowSamples    int     `envconfig:"BURST_SUSTAINED_LOW_SAMPLES" default:"6"`
	SustainedLowWindowMins int     `envconfig:"BURST_SUSTAINED_LOW_WINDOW_MINUTES" default:"30"`

	TitleSimilarityThreshold float64 `envconfig:"DEDUP_TITLE_SIMILARITY_THRESHOLD" default:"0.985"`

	RetentionDays int `envconfig:"PW_RETENTION_DAYS" default:"180"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PW_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PW_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PW_DB_MIN_CONNS (%d) cannot exceed PW_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.Company) == "" {
		return fmt.Errorf("PW_COMPANY is required")
	}
	if c.RiskWindowHours < 1 {
		return fmt.Errorf("RISK_WINDOW_HOURS must be >= 1")
	}
	for name, w := range map[string]float64{
		"RISK_WEIGHT_S": c.WeightSentiment,
		"RISK_WEIGHT_V": c.WeightVolume,
		"RISK_WEIGHT_T": c.WeightTheme,
		"RISK_WEIGHT_M": c.WeightOutlet,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if c.WeightSentiment+c.WeightVolume+c.WeightTheme+c.WeightOutlet <= 0 {
		return fmt.Errorf("component weights must not all be zero")
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		return fmt.Errorf("RISK_EMA_ALPHA must be in (0,1]")
	}
	if c.LowSampleAlpha <= 0 || c.LowSampleAlpha > 1 {
		return fmt.Errorf("RISK_LOW_SAMPLE_ALPHA must be in (0,1]")
	}
	if c.LowSampleCount < 0 {
		return fmt.Errorf("RISK_LOW_SAMPLE_COUNT must be >= 0")
	}
	if c.BaseIntervalSeconds < 1 || c.BurstIntervalSeconds < 1 {
		return fmt.Errorf("polling intervals must be >= 1 second")
	}
	if c.BurstIntervalSeconds > c.BaseIntervalSeconds {
		return fmt.Errorf("BURST_INTERVAL_SECONDS (%d) cannot exceed BURST_BASE_INTERVAL_SECONDS (%d)", c.BurstIntervalSeconds, c.BaseIntervalSeconds)
	}
	if c.MaxBurstSeconds < c.BurstIntervalSeconds {
		return fmt.Errorf("BURST_MAX_DURATION_SECONDS must cover at least one burst interval")
	}
	if c.SustainedLowSamples < 1 {
		return fmt.Errorf("BURST_SUSTAINED_LOW_SAMPLES must be >= 1")
	}
	if c.SustainedLowWindowMins < 1 {
		return fmt.Errorf("BURST_SUSTAINED_LOW_WINDOW_MINUTES must be >= 1")
	}
	if c.TitleSimilarityThreshold <= 0 || c.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("DEDUP_TITLE_SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("PW_RETENTION_DAYS must be >= 1")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
