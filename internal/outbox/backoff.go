package outbox

import "time"

// Backoff computes the delay before an outbox row becomes claimable again
// after a failed delivery attempt. The schedule is deliberately linear —
// max(attempts, 1) seconds — rather than exponential: monotone, bounded
// below by one second, and trivially reproducible in tests. There is no
// attempts cap in this spec; rows retry forever under persistent failure.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts) * time.Second
}
