// internal/simdevice/simdevice.go
package simdevice

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/simonvetter/modbus"
)

// Device is an in-process Modbus-TCP slave for tests.
// Only registers marked valid can be read; a read touching any other
// register gets an illegal-data-address exception. Writes make the
// written registers valid.
type Device struct {
	Endpoint string

	server *modbus.ModbusServer

	mu     sync.Mutex
	regs   map[uint16]uint16
	delay  time.Duration
	reads  int
	writes int
}

// Start launches a device on a free loopback port and stops it on test cleanup.
func Start(tb testing.TB) *Device {
	tb.Helper()

	d := &Device{
		Endpoint: freeEndpoint(tb),
		regs:     make(map[uint16]uint16),
	}

	srv, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://" + d.Endpoint,
		Timeout:    30 * time.Second,
		MaxClients: 4,
	}, d)
	if err != nil {
		tb.Fatalf("simdevice: new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		tb.Fatalf("simdevice: start: %v", err)
	}
	d.server = srv

	tb.Cleanup(d.Stop)
	return d
}

// Stop shuts the server down. Safe to call twice.
func (d *Device) Stop() {
	d.mu.Lock()
	srv := d.server
	d.server = nil
	d.mu.Unlock()

	if srv != nil {
		_ = srv.Stop()
	}
}

// Set makes the register at PDU address addr valid with value v.
func (d *Device) Set(addr, v uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs[addr] = v
}

// Invalidate makes reads touching addr fail with an exception.
func (d *Device) Invalidate(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.regs, addr)
}

// SetDelay delays every reply, e.g. to exceed a client timeout.
func (d *Device) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Reads returns how many holding-register reads were served.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Writes returns how many holding-register write requests were served.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Get returns the register at PDU address addr and whether it is valid.
func (d *Device) Get(addr uint16) (uint16, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.regs[addr]
	return v, ok
}

// ---- modbus.RequestHandler ----

func (d *Device) HandleCoils(*modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (d *Device) HandleDiscreteInputs(*modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (d *Device) HandleInputRegisters(*modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

func (d *Device) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.writes++
		for i, v := range req.Args {
			d.regs[req.Addr+uint16(i)] = v
		}
		return req.Args, nil
	}

	d.mu.Lock()
	d.reads++
	delay := d.delay
	out := make([]uint16, 0, req.Quantity)
	var err error
	for i := uint16(0); i < req.Quantity; i++ {
		v, ok := d.regs[req.Addr+i]
		if !ok {
			err = modbus.ErrIllegalDataAddress
			break
		}
		out = append(out, v)
	}
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FreeEndpoint returns a loopback host:port nobody listens on.
func FreeEndpoint(tb testing.TB) string {
	tb.Helper()
	return freeEndpoint(tb)
}

func freeEndpoint(tb testing.TB) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("simdevice: listen: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	_ = l.Close()
	return fmt.Sprintf("127.0.0.1:%d", addr.Port)
}
