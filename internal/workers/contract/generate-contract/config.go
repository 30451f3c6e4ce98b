package generatecontract

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	// ProviderName is printed on the provider signature line.
	ProviderName string
	DownloadPath string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		ProviderName:  "MerchantFlow AI",
		DownloadPath:  "/api/v1/download-contract/",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DownloadPath == "" {
		return fmt.Errorf("download_path is required")
	}
	return nil
}
