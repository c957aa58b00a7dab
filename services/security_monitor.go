package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"eviction_intake_go/config"
	"eviction_intake_go/models"

	"gorm.io/gorm"
)

const (
	failureWindow    = 10 * time.Minute
	failureThreshold = 5
	alertCooldown    = time.Hour
	maxAlerts        = 100
)

// SecurityEventMonitor counts rejected credentials per IP and raises an
// alert when one address keeps failing
type SecurityEventMonitor struct {
	mu         sync.Mutex
	failures   map[string][]time.Time // IP -> failure timestamps inside the window
	alertedIPs map[string]time.Time   // IP -> last alert time
	alerts     []SecurityAlert        // newest first
	cfg        *config.Config
	db         *gorm.DB
	now        func() time.Time
}

// SecurityAlert represents a triggered security alert
type SecurityAlert struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Reason    string    `json:"reason"`
	Failures  int       `json:"failures"`
	Level     string    `json:"level"`
}

// Monitor is the process-wide monitor. Methods are no-ops while it is nil.
var Monitor *SecurityEventMonitor

// NewSecurityMonitor creates a monitor. cfg and database may be nil. Alerts
// are emailed when a clerk address is configured and written to the audit
// log when a database is given.
func NewSecurityMonitor(cfg *config.Config, database *gorm.DB) *SecurityEventMonitor {
	return &SecurityEventMonitor{
		failures:   make(map[string][]time.Time),
		alertedIPs: make(map[string]time.Time),
		cfg:        cfg,
		db:         database,
		now:        time.Now,
	}
}

// InitSecurityMonitor sets the global monitor and starts its cleanup loop
func InitSecurityMonitor(cfg *config.Config, database *gorm.DB) {
	Monitor = NewSecurityMonitor(cfg, database)
	go Monitor.cleanupLoop()
}

// TrackFailedCredential records a rejected signature or dashboard token.
// kind names the credential for the alert reason.
func (m *SecurityEventMonitor) TrackFailedCredential(ip, kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	windowStart := now.Add(-failureWindow)
	recent := []time.Time{}
	for _, t := range m.failures[ip] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	m.failures[ip] = recent

	if len(recent) >= failureThreshold {
		m.triggerAlertLocked(ip, fmt.Sprintf("Repeated invalid %s", kind), len(recent))
	}
}

// triggerAlertLocked records and reports an alert, at most one per IP per
// cooldown. Callers hold m.mu.
func (m *SecurityEventMonitor) triggerAlertLocked(ip, reason string, failures int) {
	now := m.now()
	if last, alerted := m.alertedIPs[ip]; alerted && now.Sub(last) < alertCooldown {
		return
	}
	m.alertedIPs[ip] = now

	alert := SecurityAlert{
		Timestamp: now,
		IP:        ip,
		Reason:    reason,
		Failures:  failures,
		Level:     "CRITICAL",
	}
	m.alerts = append([]SecurityAlert{alert}, m.alerts...)
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[:maxAlerts]
	}

	log.Printf("[SECURITY ALERT] %s from IP: %s (%d failures in %s)", reason, ip, failures, failureWindow)

	if m.db != nil {
		LogAuditEvent(m.db, AuditContext{Actor: "system", IPAddress: ip}, models.AuditActionSecurity,
			"*", reason, nil, map[string]interface{}{"failures": failures})
	}

	if m.cfg != nil && m.cfg.ClerkEmail != "" {
		SendEmailAsync(m.cfg, &Email{
			To:      []string{m.cfg.ClerkEmail},
			Subject: fmt.Sprintf("Security alert: %s", reason),
			TextBody: fmt.Sprintf("The intake service detected a security event:\n\nType: %s\nIP Address: %s\nFailures: %d\nTime: %s\n\nPlease investigate.",
				reason, ip, failures, now.Format(time.RFC1123)),
		})
	}
}

// GetRecentAlerts returns a copy of recent alerts, newest first
func (m *SecurityEventMonitor) GetRecentAlerts() []SecurityAlert {
	if m == nil {
		return []SecurityAlert{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	alertsCopy := make([]SecurityAlert, len(m.alerts))
	copy(alertsCopy, m.alerts)
	return alertsCopy
}

// Cleanup drops failure windows and alert cooldowns that have expired
func (m *SecurityEventMonitor) Cleanup() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for ip, attempts := range m.failures {
		if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) > failureWindow {
			delete(m.failures, ip)
		}
	}
	for ip, lastAlert := range m.alertedIPs {
		if now.Sub(lastAlert) > alertCooldown {
			delete(m.alertedIPs, ip)
		}
	}
}

func (m *SecurityEventMonitor) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		m.Cleanup()
	}
}
