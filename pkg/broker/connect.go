package broker

import (
	"time"

	"github.com/cenkalti/backoff/v3"
)

var initialRetryInterval = 500 * time.Millisecond

// Connect retries b.Connect with exponential backoff until it succeeds or
// maxElapsed has passed, then returns the last error.
func Connect(b Broker, maxElapsed time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialRetryInterval
	bo.MaxInterval = maxElapsed
	bo.MaxElapsedTime = maxElapsed
	return backoff.Retry(b.Connect, bo)
}
