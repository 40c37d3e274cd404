// Package trend computes elapsed time and signature rates over observations.
package trend

import (
	"time"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

// Since returns the time elapsed between the observation and now.
func Since(o model.Observation, now time.Time) time.Duration {
	return now.Sub(o.At)
}

// MinutesSince is Since expressed in fractional minutes.
func MinutesSince(o model.Observation, now time.Time) float64 {
	return Since(o, now).Minutes()
}

// PerMinute returns the signature rate between two observations. Observations
// taken at the same instant yield 0.
func PerMinute(prev, curr model.Observation) float64 {
	minutes := curr.At.Sub(prev.At).Minutes()
	if minutes == 0 {
		return 0
	}
	return float64(curr.Signatures-prev.Signatures) / minutes
}

// Latest returns the rate between the two most recent observations of a
// chronologically ordered series, or 0 when there are fewer than two.
func Latest(series []model.Observation) float64 {
	if len(series) < 2 {
		return 0
	}
	return PerMinute(series[len(series)-2], series[len(series)-1])
}
