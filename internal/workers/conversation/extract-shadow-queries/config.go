// internal/workers/conversation/extract-shadow-queries/config.go
package extractshadowqueries

import (
	"time"

	"shadowquery-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	CacheEnabled bool
	// PersistByDefault archives every report unless the job says otherwise.
	PersistByDefault bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		CacheEnabled: true,
	}
}

// ConfigFrom derives the worker settings from the application config.
func ConfigFrom(cfg *config.Config) *Config {
	c := LoadConfig()
	if cfg == nil {
		return c
	}
	wc := config.GetWorkerConfig(cfg, TaskType)
	if wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if wc.MaxRetries > 0 {
		c.MaxRetries = wc.MaxRetries
	}
	c.CacheEnabled = cfg.Cache.Enabled
	return c
}
