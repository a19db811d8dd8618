//go:build integration

package integration

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/discovery"
	"github.com/fgeck/ciscoprov/internal/services/transport"
)

// These tests talk to the host's serial subsystem but need no device attached.

func TestListPorts_Integration(t *testing.T) {
	ports, err := transport.DefaultLister{}.ListPorts()

	require.NoError(t, err)
	t.Logf("found %d serial ports: %v", len(ports), ports)
}

func TestListDetailed_Integration(t *testing.T) {
	infos, err := transport.DefaultLister{}.ListDetailed()

	require.NoError(t, err)
	for _, info := range infos {
		assert.NotEmpty(t, info.Name)
		if info.IsUSB {
			t.Logf("%s: USB %s:%s %s", info.Name, info.VendorID, info.ProductID, info.Product)
		}
	}
}

func TestOpenMissingPort_Integration(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("device paths differ on windows")
	}

	_, err := transport.DefaultOpener{}.Open("/dev/ttyCISCOPROV99", 9600, time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrPortNotFound)
}

func TestCandidatePorts_Integration(t *testing.T) {
	svc := discovery.New(zerolog.New(zerolog.NewTestWriter(t)), models.SerialSettings{DefaultBaud: 9600}, models.DefaultTiming())

	ports := svc.CandidatePorts()

	assert.NotEmpty(t, ports)
}

func TestAutodetectNothingAttached_Integration(t *testing.T) {
	// Probing only a missing port keeps this fast and hardware independent.
	serial := models.SerialSettings{
		DefaultBaud:   9600,
		ReadTimeout:   time.Second,
		FallbackPorts: []string{"/dev/ttyCISCOPROV99"},
	}
	svc := discovery.NewWithTransport(
		zerolog.New(zerolog.NewTestWriter(t)),
		transport.DefaultOpener{},
		emptyLister{},
		clock.Real{},
		serial,
		models.DefaultTiming(),
	)

	_, err := svc.Autodetect(context.Background(), 9600)

	assert.ErrorIs(t, err, discovery.ErrNoDevice)
}

type emptyLister struct{}

func (emptyLister) ListPorts() ([]string, error)               { return nil, nil }
func (emptyLister) ListDetailed() ([]models.PortInfo, error) { return nil, nil }
