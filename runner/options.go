package runner

import (
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
)

// Option configures a Runner at creation time.
type Option func(*config)

type config struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // 0 keeps the wazero default
	timeout          time.Duration
	logger           func(msg string)
}

func defaultConfig() config {
	return config{
		timeout: 30 * time.Second,
		logger: func(msg string) {
			glog.Infof("guest: %s", msg)
		},
	}
}

// WithDiskCache enables a persistent compilation cache. Without dir the
// cache lives under XDG_CACHE_HOME/jpcguest or ~/.cache/jpcguest.
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps guest memory at pages of 64KiB.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithTimeout bounds a single invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger receives guest console output. The default logs through glog.
func WithLogger(fn func(msg string)) Option {
	return func(c *config) {
		if fn != nil {
			c.logger = fn
		}
	}
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "jpcguest")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "jpcguest")
	}
	return filepath.Join(os.TempDir(), "jpcguest-cache")
}
