// Package notify shows transient success and failure messages to a terminal user.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// TerminalNotifier writes one line per message. Success goes to out,
// failure to errOut.
type TerminalNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	quiet  bool
	logger domain.Logger

	failures int
}

// NewTerminalNotifier creates a notifier. With quiet set, success messages
// are only logged.
func NewTerminalNotifier(out, errOut io.Writer, quiet bool, logger domain.Logger) *TerminalNotifier {
	return &TerminalNotifier{out: out, errOut: errOut, quiet: quiet, logger: logger}
}

// Success implements domain.Notifier.
func (n *TerminalNotifier) Success(ctx context.Context, msg string) {
	n.logger.Debug(ctx, "User notification", "kind", "success", "message", msg)
	if n.quiet {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "✓ %s\n", msg)
}

// Failure implements domain.Notifier.
func (n *TerminalNotifier) Failure(ctx context.Context, msg string) {
	n.logger.Debug(ctx, "User notification", "kind", "failure", "message", msg)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures++
	fmt.Fprintf(n.errOut, "✗ %s\n", msg)
}

// Failures counts the failure messages shown so far.
func (n *TerminalNotifier) Failures() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failures
}
