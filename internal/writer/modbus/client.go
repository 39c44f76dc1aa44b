// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// EndpointClient is a single TCP connection to one status memory endpoint.
// It serializes requests because it mutates SlaveId per write.
// The session is opened on first use and reopened after a failure.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes regs starting at addr with FC 16.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	qty := uint16(len(regs))
	payload := packRegisters(regs)

	if _, err := c.client.WriteMultipleRegisters(addr, qty, payload); err != nil {
		// Drop the session; goburrow dials again on the next request.
		_ = c.handler.Close()
		return err
	}
	return nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
