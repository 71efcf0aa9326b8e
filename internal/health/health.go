// Package health derives a source's health classification from its run of
// consecutive fetch failures. The classification is a pure function of the
// failure count; nothing else may set it.
package health

import (
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

// Thresholds holds the consecutive-failure counts at which a source
// escalates. Degraded must stay strictly below Dead so escalation is
// monotonic.
type Thresholds struct {
	Degraded uint // failures at which a source becomes degraded
	Dead     uint // failures at which a source becomes dead
}

// DefaultThresholds returns the standard 3/10 escalation policy.
func DefaultThresholds() Thresholds {
	return Thresholds{Degraded: 3, Dead: 10}
}

// Valid reports whether the thresholds preserve the escalation ordering.
func (t Thresholds) Valid() bool {
	return t.Degraded > 0 && t.Degraded < t.Dead
}

// Classify maps a consecutive-failure count to a health status.
func (t Thresholds) Classify(consecutiveFailures uint) models.HealthStatus {
	switch {
	case consecutiveFailures >= t.Dead:
		return models.HealthDead
	case consecutiveFailures >= t.Degraded:
		return models.HealthDegraded
	default:
		return models.HealthHealthy
	}
}

// Transition returns the failure count and status after one fetch outcome.
// A success resets the count; a failure increments it. Status never
// improves except through a success.
func (t Thresholds) Transition(consecutiveFailures uint, success bool) (uint, models.HealthStatus) {
	if success {
		return 0, models.HealthHealthy
	}
	failures := consecutiveFailures + 1
	return failures, t.Classify(failures)
}

// Apply records a fetch outcome on the source at the given time, updating
// the failure count, derived status and fetch timestamps in place.
func (t Thresholds) Apply(src *models.Source, success bool, errText string, now time.Time) {
	src.ConsecutiveFailures, src.HealthStatus = t.Transition(src.ConsecutiveFailures, success)
	at := now
	src.LastFetchedAt = &at
	if success {
		src.LastError = ""
	} else {
		errAt := now
		src.LastErrorAt = &errAt
		src.LastError = errText
	}
}
