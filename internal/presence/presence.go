// Package presence answers "is this host on the network" for
// ping-based triggers, typically a phone on wifi standing in for
// someone being home.
package presence

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
)

// ErrBadHost is returned for probe targets that are not IPv4 literals.
var ErrBadHost = errors.New("presence: host must be an IPv4 address")

var ipv4Re = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}$`)

// Prober checks host reachability with the system ping binary. Phones
// drop ICMP when asleep, so a single lost probe is normal; trigger
// specs that need stability wrap the probe in a delay or countdown.
type Prober struct {
	timeout time.Duration
	logger  *logging.Logger
}

// NewProber creates a prober. Timeout bounds each probe; zero takes a
// 2-second default.
func NewProber(timeout time.Duration, logger *logging.Logger) *Prober {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Prober{
		timeout: timeout,
		logger:  logger.With("component", "presence"),
	}
}

// HostIsUp sends one ping and reports whether the host answered.
// A non-answer is (false, nil); errors mean the probe itself could
// not run.
func (p *Prober) HostIsUp(ctx context.Context, host string) (bool, error) {
	if !ipv4Re.MatchString(host) {
		return false, fmt.Errorf("%w: %q", ErrBadHost, host)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	secs := int(p.timeout / time.Second)
	if secs < 1 {
		secs = 1
	}

	// -W is the iputils (Linux) per-reply timeout in seconds. BSD and
	// macOS ping read -W as milliseconds; the context deadline still
	// bounds the probe there, so a slow ping is killed rather than
	// misread.
	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), host)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// Host did not answer. Routine for sleeping phones.
		p.logger.Debug("host did not answer ping", "host", host)
		return false, nil
	}

	return false, fmt.Errorf("presence: probing %q: %w", host, err)
}
