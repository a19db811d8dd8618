// Package console implements the interactive operator console: the main menu,
// the manual command mode and the "connect the next device" prompt.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/fgeck/ciscoprov/internal/models"
)

// ExitCommand leaves manual mode.
const ExitCommand = "exit"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// LineReader reads operator input on a single background goroutine so that
// waiting for a line can be cancelled.
type LineReader struct {
	lines chan string
	err   error // set before lines is closed
}

// NewLineReader starts reading r line by line.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{lines: make(chan string)}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lr.lines <- scanner.Text()
		}
		lr.err = scanner.Err()
		if lr.err == nil {
			lr.err = io.EOF
		}
		close(lr.lines)
	}()
	return lr
}

// ReadLine waits for the next line or for ctx to end. It returns io.EOF once input is exhausted.
func (lr *LineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			return "", lr.err
		}
		return strings.TrimRight(line, "\r"), nil
	}
}

// Console talks to the operator.
type Console struct {
	in     *LineReader
	out    io.Writer
	logger zerolog.Logger
}

// New creates a console reading from in and writing to out.
func New(logger zerolog.Logger, in *LineReader, out io.Writer) *Console {
	return &Console{in: in, out: out, logger: logger}
}

// Prompt prints label and returns the trimmed answer.
func (c *Console) Prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(c.out, promptStyle.Render(label))
	line, err := c.in.ReadLine(ctx)
	if err != nil {
		fmt.Fprintln(c.out)
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Pause waits for ENTER.
func (c *Console) Pause(ctx context.Context, label string) error {
	_, err := c.Prompt(ctx, label+" ")
	return err
}

// Info prints a highlighted line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", infoStyle.Render("›"), fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", errorStyle.Render("✗"), fmt.Sprintf(format, args...))
}

// Out returns the writer used for plain output such as tables.
func (c *Console) Out() io.Writer {
	return c.out
}

// MenuChoice is an entry of the main menu.
type MenuChoice int

// Main menu entries.
const (
	MenuExit MenuChoice = iota
	MenuManual
	MenuBatch
)

// Menu shows the main menu until the operator picks a valid entry.
func (c *Console) Menu(ctx context.Context) (MenuChoice, error) {
	for {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, titleStyle.Render("Cisco console provisioning"))
		fmt.Fprintln(c.out, "  1) Manual command mode")
		fmt.Fprintln(c.out, "  2) Provision devices from CSV")
		fmt.Fprintln(c.out, "  0) Exit")

		answer, err := c.Prompt(ctx, "Select an option: ")
		if err != nil {
			return MenuExit, err
		}

		switch answer {
		case "1":
			return MenuManual, nil
		case "2":
			return MenuBatch, nil
		case "0":
			return MenuExit, nil
		default:
			c.Error("invalid option %q", answer)
		}
	}
}

// AskPort asks for a port name. An empty answer selects autodetection.
func (c *Console) AskPort(ctx context.Context) (string, error) {
	port, err := c.Prompt(ctx, "Port (ENTER or 'auto' to detect): ")
	if err != nil {
		return "", err
	}
	if port == "" {
		return models.AutoPort, nil
	}
	return port, nil
}

// AskBaud asks for a baud rate, falling back to def on empty or invalid input.
func (c *Console) AskBaud(ctx context.Context, def int) (int, error) {
	answer, err := c.Prompt(ctx, fmt.Sprintf("Baud rate (ENTER=%d): ", def))
	if err != nil {
		return 0, err
	}
	baud, convErr := strconv.Atoi(answer)
	if convErr != nil || baud <= 0 {
		if answer != "" {
			c.Error("invalid baud rate %q, using %d", answer, def)
		}
		return def, nil
	}
	return baud, nil
}

// Ready announces the next device and waits for the operator to connect it.
// It satisfies runner.Gate.
func (c *Console) Ready(ctx context.Context, index, total int, rec models.DeviceRecord) error {
	port := rec.Port
	if rec.IsAutoPort() {
		port = models.AutoPort
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, titleStyle.Render(fmt.Sprintf("Device %d/%d: %s", index, total, rec.Hostname)))
	fmt.Fprintln(c.out, mutedStyle.Render(fmt.Sprintf("expected serial %s | port %s | baud %d", rec.Serial, port, rec.Baud)))

	return c.Pause(ctx, "Connect the device and press ENTER...")
}

// IsInterrupt reports whether err means the operator cancelled.
func IsInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}
