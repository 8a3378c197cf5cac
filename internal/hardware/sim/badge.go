package sim

import (
	"context"
	"time"
)

// BadgeReader yields scripted UIDs at a fixed interval, then blocks until ctx is done.
type BadgeReader struct {
	uids     []string
	interval time.Duration
	next     int
}

// NewBadgeReader creates a reader that waits interval before each scan.
func NewBadgeReader(interval time.Duration, uids ...string) *BadgeReader {
	return &BadgeReader{
		uids:     uids,
		interval: interval,
	}
}

// Read implements the badge reader contract.
func (r *BadgeReader) Read(ctx context.Context) (string, error) {
	if r.next >= len(r.uids) {
		<-ctx.Done()

		return "", ctx.Err()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(r.interval):
	}

	uid := r.uids[r.next]
	r.next++

	return uid, nil
}
