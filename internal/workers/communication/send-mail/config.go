package sendmail

import (
	"fmt"
	"time"

	"beacon/internal/common/config"
)

// WorkerName is the key of this worker under workers: in the config file.
const WorkerName = "send-mail"

type Config struct {
	Enabled       bool
	JobType       string
	MaxJobsActive int
	Timeout       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		JobType:       TaskType,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.JobType == "" {
		return fmt.Errorf("job type is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

// createConfigFromAppConfig overlays the camunda section and the per-worker
// entry on the defaults. customConfig wins outright.
func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if appConfig.Camunda.MailJobType != "" {
		cfg.JobType = appConfig.Camunda.MailJobType
	}
	if appConfig.Camunda.MaxJobsActive > 0 {
		cfg.MaxJobsActive = appConfig.Camunda.MaxJobsActive
	}
	if appConfig.Camunda.Timeout > 0 {
		cfg.Timeout = time.Duration(appConfig.Camunda.Timeout) * time.Millisecond
	}

	if workerCfg, exists := appConfig.Workers[WorkerName]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
		}
	}
	return cfg
}
