package presence

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/config"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func requirePing(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ping"); err != nil {
		t.Skip("ping binary not available")
	}
}

func TestHostIsUpLoopback(t *testing.T) {
	requirePing(t)
	p := NewProber(2*time.Second, testLogger())

	up, err := p.HostIsUp(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("HostIsUp: %v", err)
	}
	if !up {
		t.Error("loopback should answer ping")
	}
}

func TestHostIsUpUnreachable(t *testing.T) {
	requirePing(t)
	p := NewProber(1*time.Second, testLogger())

	// TEST-NET-1 is reserved and never routed.
	up, err := p.HostIsUp(context.Background(), "192.0.2.1")
	if err != nil {
		t.Fatalf("HostIsUp: %v", err)
	}
	if up {
		t.Error("reserved address should not answer")
	}
}

func TestHostIsUpRejectsBadHost(t *testing.T) {
	p := NewProber(time.Second, testLogger())

	for _, host := range []string{"", "example.com", "10.0.0.1; rm -rf /", "10.0.0.1 extra"} {
		if _, err := p.HostIsUp(context.Background(), host); !errors.Is(err, ErrBadHost) {
			t.Errorf("HostIsUp(%q) error = %v, want ErrBadHost", host, err)
		}
	}
}

func TestHostIsUpCancelled(t *testing.T) {
	requirePing(t)
	p := NewProber(5*time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	up, err := p.HostIsUp(ctx, "192.0.2.1")
	if up {
		t.Error("cancelled probe must not report up")
	}
	_ = err // cancelled probes may surface as down or as a context error
}
