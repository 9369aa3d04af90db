package store

import (
	"math/rand/v2"
	"strings"
	"time"
)

// retryConfig controls retries of writes that hit transient SQLite errors
// while several runs are being indexed at once.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  25 * time.Millisecond,
	maxDelay:   250 * time.Millisecond,
}

func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp runs fn until it succeeds, fails with a non-transient error, or
// the retries are used up.
func retryOp(cfg retryConfig, fn func() error) error {
	var err error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if err = fn(); err == nil || !isTransientSQLiteErr(err) {
			return err
		}
		if attempt < cfg.maxRetries {
			time.Sleep(backoffDelay(cfg, attempt))
		}
	}
	return err
}

// backoffDelay doubles the base delay per attempt, caps it, and adds up to
// 50% jitter.
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	d := cfg.baseDelay << attempt
	if d > cfg.maxDelay {
		d = cfg.maxDelay
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}
