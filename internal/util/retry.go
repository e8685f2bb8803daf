// Package util provides shared utility functions for snmpfs.
package util

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"
)

// transportRetryOptions returns retry options for opening agent sessions.
// Only network-level failures are retried; configuration errors surface
// on the first attempt.
func transportRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(4),
		retry.Delay(200 * time.Millisecond),
		retry.MaxDelay(2 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Debug("retrying agent connect")
		}),
		retry.Context(ctx),
	}
}

// Retry runs fn, retrying transient transport failures with backoff.
// opts are applied after the transport defaults and override them.
// Returns the last error if all attempts fail.
func Retry(ctx context.Context, fn func() error, opts ...retry.Option) error {
	return retry.Do(fn, append(transportRetryOptions(ctx), opts...)...)
}

// Common retry predicates

// IsTransient returns true for network errors that may clear on their own:
// timeouts, refused connections and unresolvable hosts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable")
}
