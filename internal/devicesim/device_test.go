package devicesim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgeck/ciscoprov/internal/services/transport"
)

func send(t *testing.T, d *Device, line string) string {
	t.Helper()
	_, err := d.Write([]byte(line + "\r\n"))
	require.NoError(t, err)
	out, err := d.ReadAvailable()
	require.NoError(t, err)
	return string(out)
}

func TestDevice_PromptsFollowMode(t *testing.T) {
	d := New(Config{})

	assert.Contains(t, send(t, d, ""), "Router>")
	assert.Contains(t, send(t, d, "enable"), "Router#")
	assert.Contains(t, send(t, d, "configure terminal"), "Router(config)#")
	assert.Contains(t, send(t, d, "hostname R_Lab1"), "R_Lab1(config)#")
	assert.Contains(t, send(t, d, "line vty 0 4"), "R_Lab1(config-line)#")
	assert.Contains(t, send(t, d, "exit"), "R_Lab1(config)#")
	assert.Contains(t, send(t, d, "end"), "R_Lab1#")
	assert.Contains(t, send(t, d, "write memory"), "[OK]")
	assert.True(t, d.Saved())
	assert.Equal(t, "R_Lab1", d.Hostname())
}

func TestDevice_EnableSecret(t *testing.T) {
	d := New(Config{EnableSecret: "pw1"})

	assert.Contains(t, send(t, d, "enable"), "Password: ")
	assert.Contains(t, send(t, d, "wrong"), "% Access denied")
	assert.Contains(t, send(t, d, "enable"), "Password: ")
	assert.Contains(t, send(t, d, "pw1"), "Router#")
}

func TestDevice_Inventory(t *testing.T) {
	tests := []struct {
		style    InventoryStyle
		contains string
	}{
		{InventorySN, "SN: ABC123"},
		{InventoryLabel, "System Serial Number : ABC123"},
		{InventoryNone, "Unknown chassis"},
	}

	for _, tt := range tests {
		d := New(Config{Serial: "ABC123", Inventory: tt.style})
		assert.Contains(t, send(t, d, "show inventory"), tt.contains)
	}
}

func TestDevice_ConfigRequiresPrivilegedMode(t *testing.T) {
	d := New(Config{})

	assert.Contains(t, send(t, d, "configure terminal"), "% Invalid input")
	assert.Contains(t, send(t, d, "write memory"), "% Invalid input")
	assert.False(t, d.Saved())
}

func TestDevice_RSANeedsDomain(t *testing.T) {
	d := New(Config{})
	send(t, d, "enable")
	send(t, d, "configure terminal")

	assert.Contains(t, send(t, d, "crypto key generate rsa modulus 1024"), "define a domain-name first")

	send(t, d, "ip domain-name lab.local")
	assert.Contains(t, send(t, d, "crypto key generate rsa modulus 1024"), "Router.lab.local")
}

func TestDevice_PartialLines(t *testing.T) {
	d := New(Config{})

	_, err := d.Write([]byte("ena"))
	require.NoError(t, err)
	_, err = d.Write([]byte("ble\r\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"enable"}, d.History())
}

func TestDevice_FailOnAndClose(t *testing.T) {
	d := New(Config{})
	boom := errors.New("cable pulled")
	d.FailOn("ip domain-name", boom)

	_, err := d.Write([]byte("ip domain-name lab.local\r\n"))
	assert.ErrorIs(t, err, boom)

	require.NoError(t, d.Close())
	assert.True(t, d.Closed())
	_, err = d.Write([]byte("\r\n"))
	assert.ErrorIs(t, err, transport.ErrPortClosed)
	_, err = d.ReadAvailable()
	assert.ErrorIs(t, err, transport.ErrPortClosed)
	assert.ErrorIs(t, d.Close(), transport.ErrPortClosed)
}

func TestDevice_MuteAndBanner(t *testing.T) {
	muted := New(Config{Mute: true, Banner: "hello"})
	assert.Empty(t, send(t, muted, "show inventory"))

	d := New(Config{Banner: "Press RETURN to get started!\r\n"})
	out, err := d.ReadAvailable()
	require.NoError(t, err)
	assert.Contains(t, string(out), "Press RETURN")
}

func TestBench_OpenAndList(t *testing.T) {
	dev := New(Config{Serial: "ABC123"})
	b := NewBench("/dev/ttyUSB0")
	b.Attach("/dev/ttyUSB1", dev)

	ports, err := b.ListPorts()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, ports)

	p, err := b.Open("/dev/ttyUSB1", 9600, time.Second)
	require.NoError(t, err)
	assert.Same(t, dev, p)

	empty, err := b.Open("/dev/ttyUSB0", 9600, time.Second)
	require.NoError(t, err)
	_, err = empty.Write([]byte("show inventory\r\n"))
	require.NoError(t, err)
	out, err := empty.ReadAvailable()
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, []string{"/dev/ttyUSB1", "/dev/ttyUSB0"}, b.Opened())
}

func TestBench_OpenErrors(t *testing.T) {
	b := NewBench("COM3")
	b.FailOpen("COM3", transport.ErrPortBusy)

	_, err := b.Open("COM3", 9600, time.Second)
	assert.ErrorIs(t, err, transport.ErrPortBusy)

	_, err = b.Open("COM9", 9600, time.Second)
	assert.ErrorIs(t, err, transport.ErrPortNotFound)

	b.Attach("COM4", New(Config{}))
	_, err = b.Open("COM4", 0, time.Second)
	assert.ErrorIs(t, err, transport.ErrInvalidBaudRate)
}

func TestBench_ReopenKeepsConfiguration(t *testing.T) {
	dev := New(Config{})
	b := NewBench()
	b.Attach("COM3", dev)

	p, err := b.Open("COM3", 9600, time.Second)
	require.NoError(t, err)
	send(t, dev, "enable")
	send(t, dev, "configure terminal")
	send(t, dev, "hostname R_Lab1")
	require.NoError(t, p.Close())

	_, err = b.Open("COM3", 9600, time.Second)
	require.NoError(t, err)
	assert.False(t, dev.Closed())
	assert.Contains(t, send(t, dev, ""), "R_Lab1#")

	b.Detach("COM3")
	infos, err := b.ListDetailed()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "COM3", infos[0].Name)
}
