package processdocument

import (
	"fmt"
	"time"

	"merchant-onboarding/internal/common/config"
)

type Config struct {
	Enabled           bool
	MaxJobsActive     int
	Timeout           time.Duration
	MaxFileBytes      int64
	AllowedExtensions []string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		MaxJobsActive:     5,
		Timeout:           30 * time.Second,
		MaxFileBytes:      10 << 20,
		AllowedExtensions: []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".txt"},
	}
}

// FromAppConfig overlays the worker and onboarding sections on the defaults.
func FromAppConfig(appCfg *config.Config) *Config {
	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}

	wc := config.GetWorkerConfig(appCfg, TaskType)
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	if appCfg.Onboarding.MaxUploadBytes > 0 {
		cfg.MaxFileBytes = appCfg.Onboarding.MaxUploadBytes
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed extension is required")
	}
	return nil
}
