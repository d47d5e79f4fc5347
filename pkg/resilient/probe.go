package resilient

import (
	"context"
	"net"
	"time"
)

// DefaultProbeTimeout bounds reachability checks so an offline node answers
// Persist quickly instead of hanging on a dead network.
const DefaultProbeTimeout = 3 * time.Second

// Prober reports whether the durable backend looks reachable. A positive
// answer is only a hint; the real write still decides.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// TCPProbe dials a host:port with a bounded timeout.
type TCPProbe struct {
	Target  string
	Timeout time.Duration
}

func NewTCPProbe(target string, timeout time.Duration) *TCPProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &TCPProbe{Target: target, Timeout: timeout}
}

func (p *TCPProbe) Reachable(ctx context.Context) bool {
	timeout := p.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	conn, err := net.DialTimeout("tcp", p.Target, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// AlwaysReachable skips probing. Used for in-process backends and tests.
type AlwaysReachable struct{}

func (AlwaysReachable) Reachable(ctx context.Context) bool { return true }

// NeverReachable simulates a fully offline node. Test helper.
type NeverReachable struct{}

func (NeverReachable) Reachable(ctx context.Context) bool { return false }
