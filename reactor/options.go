// File: reactor/options.go
// Package reactor defines functional options for the polling tasks.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/pool"
)

type taskConfig struct {
	log   zerolog.Logger
	cache *pool.OpCache
}

func defaultTaskConfig() taskConfig {
	return taskConfig{
		log:   zerolog.Nop(),
		cache: pool.NewOpCache(),
	}
}

// Option customizes task initialization.
type Option func(*taskConfig)

// WithLogger sets the structured logger for task debug events.
func WithLogger(log zerolog.Logger) Option {
	return func(c *taskConfig) {
		c.log = log
	}
}

// WithOpCache overrides the operation buffer cache.
func WithOpCache(cache *pool.OpCache) Option {
	return func(c *taskConfig) {
		c.cache = cache
	}
}
