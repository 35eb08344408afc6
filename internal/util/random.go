// Package util provides utility functions for the reactivation bot.
package util

import (
	"math/rand"
	"time"
)

// RandomDurationBetween returns a uniformly random duration in [min, max].
// Used for human-like pacing between outbound messages.
func RandomDurationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}
