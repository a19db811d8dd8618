package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/devicesim"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/discovery"
)

// lockedBuffer lets a test goroutine watch console output while it is written.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	return New(testLogger(), NewLineReader(strings.NewReader(input)), &out), &out
}

func newBenchDiscovery(bench *devicesim.Bench) discovery.Service {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	serial := models.SerialSettings{DefaultBaud: 9600, ReadTimeout: time.Second, OpenSettle: 2 * time.Second}
	return discovery.NewWithTransport(testLogger(), bench, bench, clk, serial, models.DefaultTiming())
}

func TestLineReader(t *testing.T) {
	lr := NewLineReader(strings.NewReader("first\r\nsecond\n"))

	line, err := lr.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = lr.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = lr.ReadLine(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lr := NewLineReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lr.ReadLine(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsInterrupt(err))

	// A line typed after the interrupt is still delivered.
	go func() { _, _ = pw.Write([]byte("later\n")) }()
	line, err := lr.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "later", line)
}

func TestMenu(t *testing.T) {
	tests := []struct {
		input    string
		expected MenuChoice
	}{
		{"1\n", MenuManual},
		{"2\n", MenuBatch},
		{"0\n", MenuExit},
		{"9\n 2 \n", MenuBatch},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			c, _ := newTestConsole(tt.input)

			choice, err := c.Menu(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.expected, choice)
		})
	}
}

func TestMenu_InvalidOptionReported(t *testing.T) {
	c, out := newTestConsole("x\n0\n")

	_, err := c.Menu(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), `invalid option "x"`)
}

func TestMenu_EOF(t *testing.T) {
	c, _ := newTestConsole("")

	_, err := c.Menu(context.Background())

	assert.ErrorIs(t, err, io.EOF)
}

func TestAskPortAndBaud(t *testing.T) {
	c, out := newTestConsole("\nCOM4\n\n115200\nfast\n")

	port, err := c.AskPort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auto", port)

	port, err = c.AskPort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "COM4", port)

	baud, err := c.AskBaud(context.Background(), 9600)
	require.NoError(t, err)
	assert.Equal(t, 9600, baud)

	baud, err = c.AskBaud(context.Background(), 9600)
	require.NoError(t, err)
	assert.Equal(t, 115200, baud)

	baud, err = c.AskBaud(context.Background(), 9600)
	require.NoError(t, err)
	assert.Equal(t, 9600, baud)
	assert.Contains(t, out.String(), `invalid baud rate "fast"`)
}

func TestReady(t *testing.T) {
	c, out := newTestConsole("\n")

	err := c.Ready(context.Background(), 2, 3, models.DeviceRecord{Hostname: "R_Lab1", Serial: "ABC123", Baud: 9600})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Device 2/3: R_Lab1")
	assert.Contains(t, out.String(), "expected serial ABC123 | port auto | baud 9600")
}

func TestManual_ExplicitPort(t *testing.T) {
	dev := devicesim.New(devicesim.Config{Serial: "ABC123"})
	bench := devicesim.NewBench()
	bench.Attach("COM3", dev)
	c, out := newTestConsole("COM3\n\nshow inventory\nEXIT\n")

	err := c.Manual(context.Background(), newBenchDiscovery(bench), 9600, 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, []string{"show inventory"}, dev.History())
	assert.Contains(t, out.String(), "SN: ABC123")
	assert.Contains(t, out.String(), "connected on COM3 (baud 9600), serial N/A")
	assert.True(t, dev.Closed())
}

func TestManual_Autodetect(t *testing.T) {
	dev := devicesim.New(devicesim.Config{Serial: "XYZ789"})
	bench := devicesim.NewBench("/dev/ttyUSB0")
	bench.Attach("/dev/ttyUSB1", dev)
	c, out := newTestConsole("auto\n19200\nexit\n")

	err := c.Manual(context.Background(), newBenchDiscovery(bench), 9600, 2*time.Second)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "connected on /dev/ttyUSB1 (baud 19200), serial XYZ789")
	assert.True(t, dev.Closed())
}

func TestManual_NoDevice(t *testing.T) {
	c, _ := newTestConsole("\n\n")

	err := c.Manual(context.Background(), newBenchDiscovery(devicesim.NewBench("/dev/ttyUSB0")), 9600, time.Second)

	assert.ErrorIs(t, err, discovery.ErrNoDevice)
}

func TestManual_InterruptClosesPort(t *testing.T) {
	dev := devicesim.New(devicesim.Config{Serial: "ABC123"})
	bench := devicesim.NewBench()
	bench.Attach("COM3", dev)

	pr, pw := io.Pipe()
	defer pw.Close()
	out := &lockedBuffer{}
	c := New(testLogger(), NewLineReader(pr), out)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = pw.Write([]byte("COM3\n"))
		_, _ = pw.Write([]byte("\n"))
		for !strings.Contains(out.String(), "Command:") {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := c.Manual(ctx, newBenchDiscovery(bench), 9600, time.Second)

	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, dev.Closed())
}
