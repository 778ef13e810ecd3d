package pipeline

import "sync/atomic"

// CancelToken is a cooperative cancellation flag passed by value into a
// single ProcessDocument invocation and checked at stage boundaries.
// The zero value is a token that can never be cancelled.
type CancelToken struct {
	flag *atomic.Bool
}

// NewCancelToken creates a cancellable token.
func NewCancelToken() CancelToken {
	return CancelToken{flag: &atomic.Bool{}}
}

// Cancel requests cancellation. Safe to call from any goroutine and
// idempotent.
func (t CancelToken) Cancel() {
	if t.flag != nil {
		t.flag.Store(true)
	}
}

// Cancelled reports whether cancellation was requested.
func (t CancelToken) Cancelled() bool {
	return t.flag != nil && t.flag.Load()
}
