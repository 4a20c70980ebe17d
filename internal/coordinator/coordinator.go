package coordinator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/metrics"
)

// Key identifies one external call class, e.g. {"llm_api", "complete"}.
type Key struct {
	Service   string
	Operation string
}

func (k Key) String() string { return k.Service + "/" + k.Operation }

// Config holds the adaptive timeout parameters. Defaults apply per key the
// first time it is seen; bounds hold for every subsequent adjustment.
type Config struct {
	DefaultTimeout time.Duration
	MinTimeout     time.Duration
	MaxTimeout     time.Duration

	WindowSize int // rolling samples kept per key

	IncreaseFactor  float64 // applied when success rate is poor
	DecreaseFactor  float64 // applied when success rate is strong and calls are fast
	LowSuccessRate  float64 // below this, widen the timeout
	HighSuccessRate float64 // above this (and fast), tighten the timeout
	MinSamples      int     // no adjustment until this many samples exist

	MaxAttempts    int           // retry cap for Do
	InitialBackoff time.Duration // first retry delay
	BackoffJitter  time.Duration
}

// DefaultConfig returns sensible defaults for LLM-class endpoints.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  30 * time.Second,
		MinTimeout:      2 * time.Second,
		MaxTimeout:      120 * time.Second,
		WindowSize:      20,
		IncreaseFactor:  1.5,
		DecreaseFactor:  0.9,
		LowSuccessRate:  0.70,
		HighSuccessRate: 0.95,
		MinSamples:      5,
		MaxAttempts:     3,
		InitialBackoff:  1 * time.Second,
		BackoffJitter:   500 * time.Millisecond,
	}
}

type sample struct {
	duration time.Duration
	success  bool
}

// keyStats is the only mutable state shared across concurrent jobs.
// Each key carries its own lock.
type keyStats struct {
	mu           sync.Mutex
	timeout      time.Duration
	window       []sample
	next         int
	filled       int
	lastAdjusted time.Time
}

// Coordinator supplies timeouts and retry policy for all external calls,
// adjusted from rolling per-key performance history. It never fails: unknown
// keys return the configured default.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.RWMutex
	keys map[Key]*keyStats
}

func New(cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.MinTimeout <= 0 {
		cfg.MinTimeout = 2 * time.Second
	}
	if cfg.MaxTimeout < cfg.MinTimeout {
		cfg.MaxTimeout = 120 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.IncreaseFactor <= 1 {
		cfg.IncreaseFactor = 1.5
	}
	if cfg.DecreaseFactor <= 0 || cfg.DecreaseFactor >= 1 {
		cfg.DecreaseFactor = 0.9
	}
	if cfg.LowSuccessRate <= 0 {
		cfg.LowSuccessRate = 0.70
	}
	if cfg.HighSuccessRate <= 0 {
		cfg.HighSuccessRate = 0.95
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	return &Coordinator{cfg: cfg, logger: logger, keys: make(map[Key]*keyStats)}
}

func (c *Coordinator) stats(k Key) *keyStats {
	c.mu.RLock()
	ks, ok := c.keys[k]
	c.mu.RUnlock()
	if ok {
		return ks
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ks, ok = c.keys[k]; ok {
		return ks
	}
	ks = &keyStats{
		timeout: c.cfg.DefaultTimeout,
		window:  make([]sample, c.cfg.WindowSize),
	}
	c.keys[k] = ks
	return ks
}

// GetTimeout returns the current timeout for (service, operation).
func (c *Coordinator) GetTimeout(service, operation string) time.Duration {
	ks := c.stats(Key{service, operation})
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.timeout
}

// RecordPerformance feeds one call outcome into the key's rolling window and
// re-evaluates the timeout once enough samples exist.
func (c *Coordinator) RecordPerformance(service, operation string, d time.Duration, success bool) {
	k := Key{service, operation}
	ks := c.stats(k)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.window[ks.next] = sample{duration: d, success: success}
	ks.next = (ks.next + 1) % len(ks.window)
	if ks.filled < len(ks.window) {
		ks.filled++
	}
	c.evaluateLocked(k, ks)
}

// AdjustTimeout forces a bounded multiplicative widening of the key's timeout,
// used when a call just timed out and a retry is imminent. Returns the new value.
func (c *Coordinator) AdjustTimeout(service, operation, reason string) time.Duration {
	k := Key{service, operation}
	ks := c.stats(k)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	next := c.clamp(time.Duration(float64(ks.timeout) * c.cfg.IncreaseFactor))
	if next != ks.timeout {
		c.logger.Warn("coordinator.timeout.widened",
			"key", k.String(), "reason", reason,
			"from", ks.timeout, "to", next)
		metrics.TimeoutAdjustments.WithLabelValues(k.String(), "up").Inc()
		ks.timeout = next
		ks.lastAdjusted = time.Now()
	}
	return ks.timeout
}

// Policy snapshots the key's current state for persistence or diagnostics.
func (c *Coordinator) Policy(service, operation string) entity.TimeoutPolicy {
	ks := c.stats(Key{service, operation})
	ks.mu.Lock()
	defer ks.mu.Unlock()

	var succ, fail int
	for i := 0; i < ks.filled; i++ {
		if ks.window[i].success {
			succ++
		} else {
			fail++
		}
	}
	return entity.TimeoutPolicy{
		Service:      service,
		Operation:    operation,
		Timeout:      ks.timeout,
		Successes:    succ,
		Failures:     fail,
		LastAdjusted: ks.lastAdjusted,
	}
}

// evaluateLocked applies the success-rate rules. Caller holds ks.mu.
func (c *Coordinator) evaluateLocked(k Key, ks *keyStats) {
	if ks.filled < c.cfg.MinSamples {
		return
	}
	var succ int
	var total time.Duration
	for i := 0; i < ks.filled; i++ {
		if ks.window[i].success {
			succ++
		}
		total += ks.window[i].duration
	}
	rate := float64(succ) / float64(ks.filled)
	mean := total / time.Duration(ks.filled)

	switch {
	case rate < c.cfg.LowSuccessRate:
		next := c.clamp(time.Duration(float64(ks.timeout) * c.cfg.IncreaseFactor))
		if next != ks.timeout {
			c.logger.Info("coordinator.timeout.increase",
				"key", k.String(), "success_rate", rate, "from", ks.timeout, "to", next)
			metrics.TimeoutAdjustments.WithLabelValues(k.String(), "up").Inc()
			ks.timeout = next
			ks.lastAdjusted = time.Now()
		}
	case rate > c.cfg.HighSuccessRate && mean < ks.timeout/2:
		next := c.clamp(time.Duration(float64(ks.timeout) * c.cfg.DecreaseFactor))
		if next != ks.timeout {
			c.logger.Debug("coordinator.timeout.decrease",
				"key", k.String(), "success_rate", rate, "mean", mean, "from", ks.timeout, "to", next)
			metrics.TimeoutAdjustments.WithLabelValues(k.String(), "down").Inc()
			ks.timeout = next
			ks.lastAdjusted = time.Now()
		}
	}
}

func (c *Coordinator) clamp(d time.Duration) time.Duration {
	if d < c.cfg.MinTimeout {
		return c.cfg.MinTimeout
	}
	if d > c.cfg.MaxTimeout {
		return c.cfg.MaxTimeout
	}
	return d
}
