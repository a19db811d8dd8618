package devicesim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/transport"
)

// Bench is a set of emulated serial ports with devices plugged into some of them.
// It satisfies transport.Opener and transport.Lister.
type Bench struct {
	mu      sync.Mutex
	ports   map[string]*Device // nil value: port present, nothing attached
	opened  []string
	openErr map[string]error
}

// NewBench creates a bench with the given empty ports.
func NewBench(ports ...string) *Bench {
	b := &Bench{ports: make(map[string]*Device), openErr: make(map[string]error)}
	for _, p := range ports {
		b.ports[p] = nil
	}
	return b
}

// Attach plugs d into port, creating the port if needed.
func (b *Bench) Attach(port string, d *Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ports[port] = d
}

// Detach unplugs whatever is attached to port.
func (b *Bench) Detach(port string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ports[port]; ok {
		b.ports[port] = nil
	}
}

// FailOpen makes opening port return err.
func (b *Bench) FailOpen(port string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr[port] = err
}

// Opened returns the ports opened so far, in order.
func (b *Bench) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.opened))
	copy(out, b.opened)
	return out
}

// Open returns a session on the device attached to name.
func (b *Bench) Open(name string, baud int, _ time.Duration) (transport.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openErr[name]; err != nil {
		return nil, err
	}
	d, ok := b.ports[name]
	if !ok {
		return nil, fmt.Errorf("failed to open %s: %w", name, transport.ErrPortNotFound)
	}
	if baud <= 0 {
		return nil, fmt.Errorf("%w: %d", transport.ErrInvalidBaudRate, baud)
	}

	b.opened = append(b.opened, name)
	if d == nil {
		return New(Config{Mute: true}), nil
	}
	d.reopen()
	return d, nil
}

// ListPorts returns the bench ports, sorted.
func (b *Bench) ListPorts() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.ports))
	for name := range b.ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListDetailed describes the bench ports.
func (b *Bench) ListDetailed() ([]models.PortInfo, error) {
	names, _ := b.ListPorts()
	infos := make([]models.PortInfo, 0, len(names))
	for _, n := range names {
		infos = append(infos, models.PortInfo{Name: n, Product: "emulated IOS console"})
	}
	return infos, nil
}
