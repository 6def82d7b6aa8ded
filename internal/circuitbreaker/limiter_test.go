package circuitbreaker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsUpToBurst(t *testing.T) {
	l := NewLimiter(60, 3) // 1/sec steady, burst 3
	for i := 0; i < 3; i++ {
		require.Truef(t, l.Allow("client-a", 1), "call %d denied, expected burst capacity", i+1)
	}
	require.False(t, l.Allow("client-a", 1), "call 4 allowed, expected burst exhausted")
}

func TestLimiterTracksClientsIndependently(t *testing.T) {
	l := NewLimiter(60, 1)
	require.True(t, l.Allow("a", 1), "first call for client a denied")
	require.True(t, l.Allow("b", 1), "first call for client b denied, clients should have independent buckets")
	require.False(t, l.Allow("a", 1), "second call for client a allowed, bucket should be exhausted")
}

func TestLimiterWeightedCallConsumesMultipleTokens(t *testing.T) {
	l := NewLimiter(60, 5)
	require.True(t, l.Allow("client-a", 5), "weighted call of 5 denied with burst 5")
	require.False(t, l.Allow("client-a", 1), "call after exhausting burst with weighted call allowed")
}

func TestLimiterDefaultsWeightToOne(t *testing.T) {
	l := NewLimiter(60, 1)
	require.True(t, l.Allow("client-a", 0), "zero weight call denied, should default to weight 1")
}
