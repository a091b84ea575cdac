package notify

import "golang.org/x/time/rate"

// NewLimiter paces a channel at perSecond sends with a burst of one.
// Zero or less means unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
