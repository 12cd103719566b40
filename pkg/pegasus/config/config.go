// Package config turns the property map produced by the (out-of-scope)
// external configuration loader into a validated Config. It has no
// knowledge of zk://, file:///, or resource:/// URIs; resolving those into
// a property map is the loader's job, not the core's.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pegasus-kv/go-client/pkg/pegasus/perrors"
)

// Config holds the recognized keys from spec.md §6.
type Config struct {
	MetaServers       []string
	OperationTimeout  time.Duration
	AsyncWorkers      int
	EnablePerfCounter bool
	PerfCounterTags   string
}

const (
	keyMetaServers       = "meta_servers"
	keyOperationTimeout  = "operation_timeout_ms"
	keyAsyncWorkers      = "async_workers"
	keyEnablePerfCounter = "enable_perf_counter"
	keyPerfCounterTags   = "perf_counter_tags"

	// DefaultOperationTimeout is used when operation_timeout_ms is absent.
	DefaultOperationTimeout = 10 * time.Second
	// DefaultAsyncWorkers is used when async_workers is absent.
	DefaultAsyncWorkers = 4
)

// FromProperties validates and converts a property map into a Config.
func FromProperties(props map[string]string) (*Config, error) {
	cfg := &Config{
		OperationTimeout: DefaultOperationTimeout,
		AsyncWorkers:     DefaultAsyncWorkers,
	}

	raw, ok := props[keyMetaServers]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, perrors.InvalidArgumentf("config: %s is required", keyMetaServers)
	}
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		cfg.MetaServers = append(cfg.MetaServers, s)
	}
	if len(cfg.MetaServers) == 0 {
		return nil, perrors.InvalidArgumentf("config: %s has no usable entries", keyMetaServers)
	}

	if raw, ok := props[keyOperationTimeout]; ok && raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, perrors.InvalidArgumentf("config: %s must be a positive integer, got %q", keyOperationTimeout, raw)
		}
		cfg.OperationTimeout = time.Duration(ms) * time.Millisecond
	}

	if raw, ok := props[keyAsyncWorkers]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, perrors.InvalidArgumentf("config: %s must be a positive integer, got %q", keyAsyncWorkers, raw)
		}
		cfg.AsyncWorkers = n
	}

	if raw, ok := props[keyEnablePerfCounter]; ok && raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, perrors.InvalidArgumentf("config: %s must be a boolean, got %q", keyEnablePerfCounter, raw)
		}
		cfg.EnablePerfCounter = b
	}

	cfg.PerfCounterTags = props[keyPerfCounterTags]

	return cfg, nil
}

// String renders the resolved configuration one key per line, matching the
// original client's getConfigurationString (logged once at construction for
// operational visibility into which meta servers and timeouts a client
// actually resolved to).
func (c *Config) String() string {
	return fmt.Sprintf(
		"%s=%s\n%s=%d\n%s=%d\n%s=%t\n%s=%s\n",
		keyMetaServers, strings.Join(c.MetaServers, ","),
		keyOperationTimeout, c.OperationTimeout.Milliseconds(),
		keyAsyncWorkers, c.AsyncWorkers,
		keyEnablePerfCounter, c.EnablePerfCounter,
		keyPerfCounterTags, c.PerfCounterTags,
	)
}
