// Package transport owns the single UDP socket used to speak the LIFX LAN
// protocol: broadcast discovery, unicast sends, the receive-dispatch loop,
// and reconnection with bounded exponential backoff.
package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lifxd/lifxd/internal/wire"
)

var (
	// ErrRateLimited is returned (and logged, never fatal) when a send is
	// dropped after waiting past the rate limiter's cap.
	ErrRateLimited = errors.New("transport: rate limited")

	// ErrTransportDown is surfaced by sends while a reconnect is in
	// progress; reconnect() itself never gives up, per spec.md §7.
	ErrTransportDown = errors.New("transport: socket unavailable")

	// ErrSendFailed wraps a lower-level socket write failure.
	ErrSendFailed = errors.New("transport: send failed")
)

const (
	broadcastAddr = "255.255.255.255"

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	healthInterval = 30 * time.Second
)

// Event is a decoded inbound frame handed to the dispatcher, tagged with the
// source address it arrived from.
type Event struct {
	Frame *wire.Frame
	Addr  *net.UDPAddr
}

// Dispatcher receives decoded inbound events. Implemented by cmd/lifxd's
// frameDispatcher in production; kept as an interface so transport has no
// upward dependency.
type Dispatcher interface {
	Dispatch(ev Event)
}

// Transport owns the UDP socket and the receive loop. Exactly one receive
// loop runs per Transport; sends are direct (blocking) writes. Unicast sends
// are gated by a per-target-MAC and socket-wide token bucket; broadcasts are
// not rate limited.
type Transport struct {
	conn       *net.UDPConn
	dispatcher Dispatcher
	source     uint32
	seq        uint32

	limiter *rateLimiter

	mu           sync.RWMutex
	down         bool
	attempt      int
	reconnecting bool

	closeOnce sync.Once
	closed    chan struct{}
}

// New binds a UDP socket to port 56700 with broadcast enabled and starts
// the receive-dispatch loop. source must be a nonzero process-unique id.
func New(source uint32, dispatcher Dispatcher) (*Transport, error) {
	if source == 0 {
		return nil, errors.NewNotValid(nil, "transport source must be nonzero")
	}

	t := &Transport{
		dispatcher: dispatcher,
		source:     source,
		limiter:    newRateLimiter(),
		closed:     make(chan struct{}),
	}

	if err := t.bind(); err != nil {
		return nil, err
	}

	go t.recvLoop()
	go t.healthCheck()

	return t, nil
}

func (t *Transport) bind() error {
	addr := &net.UDPAddr{Port: wire.Port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return errors.Annotate(err, "transport: bind")
	}

	t.mu.Lock()
	t.conn = conn
	t.down = false
	t.attempt = 0
	t.reconnecting = false
	t.mu.Unlock()

	log.WithField("component", "transport").WithField("port", wire.Port).Info("bound UDP socket")
	return nil
}

// Sequence returns the next 8-bit sequence number, wrapping at 256. It is
// serialized inside the transport so concurrent senders never race on it
// (spec.md §9 flags the source's unserialized sequence as a defect).
func (t *Transport) Sequence() uint8 {
	return uint8(atomic.AddUint32(&t.seq, 1))
}

// Broadcast sends frame to 255.255.255.255:56700 with tagged=1 and a zero
// target, per spec.md §4.2.
func (t *Transport) Broadcast(f *wire.Frame) error {
	f.Tagged = true
	f.Target = [8]byte{}
	f.Source = t.source

	addr := &net.UDPAddr{IP: net.ParseIP(broadcastAddr), Port: wire.Port}
	return t.send("broadcast", f, addr)
}

// SendTo unicasts frame to ip:56700 with tagged=0 and the target MAC set
// from mac.
func (t *Transport) SendTo(f *wire.Frame, mac string, ip net.IP) error {
	target, err := wire.TargetFromMAC(mac)
	if err != nil {
		return err
	}

	f.Tagged = false
	f.Target = target
	f.Source = t.source

	addr := &net.UDPAddr{IP: ip, Port: wire.Port}
	if err := t.limiter.allow(mac); err != nil {
		log.WithField("component", "transport").WithField("mac", mac).Warn("rate limited send dropped")
		return err
	}
	return t.send(mac, f, addr)
}

func (t *Transport) send(target string, f *wire.Frame, addr *net.UDPAddr) error {
	t.mu.RLock()
	conn := t.conn
	down := t.down
	t.mu.RUnlock()

	if down || conn == nil {
		return ErrTransportDown
	}

	raw := wire.Encode(f)
	if _, err := conn.WriteToUDP(raw, addr); err != nil {
		log.WithField("component", "transport").WithError(err).WithField("target", target).Warn("send failed")
		go t.onSocketError(err)
		return errors.Annotate(ErrSendFailed, err.Error())
	}
	return nil
}

func (t *Transport) recvLoop() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		t.mu.RLock()
		conn := t.conn
		t.mu.RUnlock()
		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			t.onSocketError(err)
			continue
		}

		f, err := wire.Decode(buf[:n])
		if err != nil {
			log.WithField("component", "transport").WithError(err).Debug("dropping undecodable frame")
			continue
		}

		t.dispatcher.Dispatch(Event{Frame: f, Addr: addr})
	}
}

func (t *Transport) onSocketError(err error) {
	t.mu.Lock()
	if t.down {
		t.mu.Unlock()
		return
	}
	t.down = true
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	alreadyReconnecting := t.reconnecting
	t.reconnecting = true
	t.mu.Unlock()

	log.WithField("component", "transport").WithError(err).Warn("socket error, reconnecting")
	if !alreadyReconnecting {
		go t.reconnect()
	}
}

// reconnect retries bind() with exponential backoff, capped at maxBackoff
// between attempts, until it succeeds or the transport is closed. It never
// gives up: spec.md §7 requires transport loss to recover automatically, not
// after some fixed number of tries.
func (t *Transport) reconnect() {
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		t.mu.Lock()
		t.attempt++
		attempt := t.attempt
		t.mu.Unlock()

		backoff := initialBackoff * time.Duration(uint64(1)<<uint(attempt-1))
		if backoff <= 0 || backoff > maxBackoff {
			backoff = maxBackoff
		}

		select {
		case <-t.closed:
			return
		case <-time.After(backoff):
		}

		if err := t.bind(); err == nil {
			log.WithField("component", "transport").WithField("attempts", attempt).Info("reconnected")
			return
		}

		log.WithField("component", "transport").WithField("attempt", attempt).WithField("backoff", backoff).Warn("reconnect attempt failed")
	}
}

// healthCheck is a safety net: if the transport is down and, for whatever
// reason, no reconnect loop is currently running for it, it starts one.
// Under normal operation onSocketError already does this; healthCheck exists
// so a dead reconnect goroutine (a bug, a panic recovered elsewhere) doesn't
// leave the transport down forever.
func (t *Transport) healthCheck() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.mu.Lock()
			needsRestart := t.down && !t.reconnecting
			if needsRestart {
				t.reconnecting = true
			}
			t.mu.Unlock()

			if needsRestart {
				log.WithField("component", "transport").Warn("health check found transport down with no reconnect loop running, restarting")
				go t.reconnect()
			}
		}
	}
}

// Close shuts the socket down and stops the receive loop.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.mu.Unlock()
	})
}

// Shutdown closes the transport, respecting ctx's deadline for any pending
// in-flight sends to drain (the socket close is immediate; ctx exists so
// callers can bound shutdown the way spec.md §5 requires at the process
// level).
func (t *Transport) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		t.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
