package transport

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	perDeviceRate  = 20  // frames/second per device, the LIFX vendor guideline
	socketWideRate = 200 // frames/second, socket-wide
	waitCap        = 500 * time.Millisecond
)

// rateLimiter enforces both the per-device-MAC and socket-wide token
// buckets described in spec.md §4.2. Excess sends wait up to waitCap then
// drop with ErrRateLimited; the drop is logged and non-fatal.
type rateLimiter struct {
	socket *rate.Limiter

	mu      sync.Mutex
	devices map[string]*rate.Limiter
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		socket:  rate.NewLimiter(rate.Limit(socketWideRate), socketWideRate),
		devices: make(map[string]*rate.Limiter),
	}
}

func (r *rateLimiter) deviceLimiter(mac string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.devices[mac]
	if !ok {
		l = rate.NewLimiter(rate.Limit(perDeviceRate), perDeviceRate)
		r.devices[mac] = l
	}
	return l
}

// allow blocks until both buckets admit a send, or returns ErrRateLimited
// if that would take longer than waitCap.
func (r *rateLimiter) allow(mac string) error {
	ctx, cancel := waitCapContext()
	defer cancel()

	dl := r.deviceLimiter(mac)
	if err := dl.Wait(ctx); err != nil {
		return ErrRateLimited
	}
	if err := r.socket.Wait(ctx); err != nil {
		return ErrRateLimited
	}
	return nil
}
