package config

import (
	"strings"
	"time"
)

type WorkerConfig struct {
	Count          int
	PollInterval   time.Duration
	HandlerTimeout time.Duration
}

// DefaultWorkerConfig reads <NAME>_WORKER_COUNT, <NAME>_POLL_INTERVAL and
// <NAME>_HANDLER_TIMEOUT. The queue visibility timeout must outlast the
// handler timeout, or a slow message is delivered twice.
func DefaultWorkerConfig(name string, handlerTimeout time.Duration) *WorkerConfig {
	prefix := strings.ToUpper(name) + "_"
	return &WorkerConfig{
		Count:          getEnvIntWithDefault(prefix+"WORKER_COUNT", 1),
		PollInterval:   getEnvDurationWithDefault(prefix+"POLL_INTERVAL", 5*time.Second),
		HandlerTimeout: getEnvDurationWithDefault(prefix+"HANDLER_TIMEOUT", handlerTimeout),
	}
}
