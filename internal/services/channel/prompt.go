package channel

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/fgeck/ciscoprov/internal/clock"
)

var (
	// promptMarker matches a trailing exec (">") or privileged ("#") prompt.
	promptMarker = regexp.MustCompile(`[>#]\s*$`)

	// promptHostname captures the hostname of a privileged prompt on its own line.
	promptHostname = regexp.MustCompile(`(?:^|[\r\n])([A-Za-z0-9_-]+)#\s*$`)

	// Ordered serial number patterns as printed by "show inventory".
	serialSN    = regexp.MustCompile(`SN:\s*([A-Z0-9]+)`)
	serialLabel = regexp.MustCompile(`(?i)(Serial Number|S/N)\s*[:#]?\s*([A-Z0-9]+)`)
)

// HasPrompt reports whether text ends in a prompt marker.
func HasPrompt(text string) bool {
	return promptMarker.MatchString(text)
}

// PromptHostname extracts the hostname from a trailing "name#" prompt.
func PromptHostname(text string) (string, bool) {
	m := promptHostname.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractSerialNumber finds the chassis serial in inventory output.
// An "SN:" token wins over "Serial Number"/"S/N" labels.
func ExtractSerialNumber(output string) (string, bool) {
	if m := serialSN.FindStringSubmatch(output); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := serialLabel.FindStringSubmatch(output); m != nil {
		return strings.TrimSpace(m[2]), true
	}
	return "", false
}

// promptReader accumulates console output until a prompt shows up or its deadline passes.
type promptReader struct {
	buf      strings.Builder
	start    time.Time
	deadline time.Time
	clk      clock.Clock
}

func newPromptReader(clk clock.Clock, seed string, timeout time.Duration) *promptReader {
	now := clk.Now()
	r := &promptReader{start: now, deadline: now.Add(timeout), clk: clk}
	r.buf.WriteString(seed)
	return r
}

// feed appends a chunk and reports whether the buffer now ends in a prompt.
func (r *promptReader) feed(chunk string) bool {
	r.buf.WriteString(chunk)
	return r.done()
}

func (r *promptReader) done() bool {
	return HasPrompt(r.buf.String())
}

// remaining is the time left before the deadline, never negative.
func (r *promptReader) remaining() time.Duration {
	left := r.deadline.Sub(r.clk.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (r *promptReader) elapsed() time.Duration {
	return r.clk.Now().Sub(r.start)
}

func (r *promptReader) text() string {
	return r.buf.String()
}

// readUntilPrompt polls the port every interval until a prompt appears or
// timeout elapses. The last sleep is clamped so the loop ends on the deadline.
func (c *Channel) readUntilPrompt(ctx context.Context, seed string, timeout time.Duration) (string, bool, error) {
	r := newPromptReader(c.clock, seed, timeout)
	if r.done() {
		return r.text(), true, nil
	}

	for {
		left := r.remaining()
		if left <= 0 {
			c.logger.Debug().
				Dur("elapsed", r.elapsed()).
				Msg("no prompt before timeout")
			return r.text(), false, nil
		}

		wait := c.timing.PollInterval
		if wait <= 0 || wait > left {
			wait = left
		}
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return r.text(), false, err
		}

		chunk, err := c.port.ReadAvailable()
		if err != nil {
			return r.text() + string(chunk), false, err
		}
		if len(chunk) > 0 && r.feed(string(chunk)) {
			return r.text(), true, nil
		}
	}
}
