// Package health reports process and dependency health for the
// /health, /healthz and /ready endpoints.
package health

import (
	"context"
	"time"

	"github.com/asesson/job-Application-Tracker/internal/db"
)

// Status is the overall health state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Report is the full health report.
type Report struct {
	Status    Status        `json:"status"`
	Version   string        `json:"version,omitempty"`
	Uptime    string        `json:"uptime"`
	Checks    []CheckResult `json:"checks,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Checker probes the process's dependencies.
type Checker struct {
	db      *db.DB
	version string
	started time.Time
}

// NewChecker creates a health checker.
func NewChecker(database *db.DB, version string) *Checker {
	return &Checker{
		db:      database,
		version: version,
		started: time.Now(),
	}
}

// Check probes all dependencies and returns a full report.
func (c *Checker) Check(ctx context.Context) *Report {
	report := &Report{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	dbCheck := CheckResult{Name: "database", Healthy: true}
	if err := c.db.Ping(); err != nil {
		dbCheck.Healthy = false
		dbCheck.Message = err.Error()
		report.Status = StatusUnhealthy
	}
	report.Checks = append(report.Checks, dbCheck)

	return report
}

// Liveness returns a minimal report without touching dependencies.
func (c *Checker) Liveness() *Report {
	return &Report{
		Status:    StatusHealthy,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}
