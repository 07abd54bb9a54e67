// internal/workers/conversation/export-report/config.go
package exportreport

import "time"

type Config struct {
	Timeout time.Duration
	// MaxRows rejects exports larger than this. Zero means unlimited.
	MaxRows int
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		MaxRows: 50000,
	}
}
