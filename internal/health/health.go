// Package health tracks availability of the model services behind the analyzer
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Overall status values
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Status represents overall system health
type Status struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Components    map[string]Check `json:"components"`
}

// Check represents a component health check
type Check struct {
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Probe reports whether a component is reachable
type Probe func(ctx context.Context) error

// Checker tracks health of system components
type Checker struct {
	logger *slog.Logger

	mu         sync.RWMutex
	version    string
	startTime  time.Time
	components map[string]Check
	probes     map[string]Probe
}

// NewChecker creates a new health checker
func NewChecker(version string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		logger:     logger,
		version:    version,
		startTime:  time.Now(),
		components: make(map[string]Check),
		probes:     make(map[string]Probe),
	}
}

// SetComponent updates a component's health status
func (c *Checker) SetComponent(name string, healthy bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components[name] = Check{
		Healthy:   healthy,
		Message:   message,
		LastCheck: time.Now(),
	}
}

// Register adds a probe that Refresh runs for the named component
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	c.probes[name] = probe
	c.mu.Unlock()
}

// Refresh runs every registered probe and records the results
func (c *Checker) Refresh(ctx context.Context) {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			c.SetComponent(name, false, err.Error())
			c.logger.Warn("health probe failed", "component", name, "error", err)
			continue
		}
		c.SetComponent(name, true, "reachable")
	}
}

// Run refreshes probes every interval until ctx is cancelled
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			c.Refresh(probeCtx)
			cancel()
		}
	}
}

// GetStatus returns the overall health status
func (c *Checker) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := StatusHealthy
	for _, check := range c.components {
		if !check.Healthy {
			status = StatusDegraded
			break
		}
	}

	// Copy components map
	components := make(map[string]Check, len(c.components))
	for k, v := range c.components {
		components[k] = v
	}

	return Status{
		Status:        status,
		Version:       c.version,
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		Components:    components,
	}
}

// IsHealthy returns true if all components are healthy
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, check := range c.components {
		if !check.Healthy {
			return false
		}
	}
	return true
}
