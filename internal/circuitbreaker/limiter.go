// limiter.go — per-client token-bucket rate limiter keyed by client id:
// one bucket per caller, lazily created, guarded by a single mutex. Here
// the "client" is the upstream liquidations API credential (usually just
// one), and weight lets a single call consume more than one token, since
// page fetches can cost more than plain reads.
package circuitbreaker

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-client token-bucket limiter.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*rate.Limiter
	ratePerMin   float64
	burst        int
}

// NewLimiter builds a Limiter allowing up to ratePerMin weight units per
// minute per client, with burst as the bucket capacity.
func NewLimiter(ratePerMin float64, burst int) *Limiter {
	return &Limiter{
		buckets:    make(map[string]*rate.Limiter),
		ratePerMin: ratePerMin,
		burst:      burst,
	}
}

func (l *Limiter) bucketFor(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[clientID]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.ratePerMin/60.0), l.burst)
		l.buckets[clientID] = b
	}
	return b
}

// Allow reports whether a call of the given weight may proceed now for
// clientID, consuming weight tokens if so.
func (l *Limiter) Allow(clientID string, weight int) bool {
	if weight <= 0 {
		weight = 1
	}
	return l.bucketFor(clientID).AllowN(time.Now(), weight)
}
