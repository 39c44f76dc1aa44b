// internal/poller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Client implements poller.Client over Modbus TCP (FC 3 only).
// This adapter is geometry-only: it maps addresses and unpacks raw responses.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	base    uint16
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration

	// AddressBase is subtracted from register addresses to form the PDU address.
	AddressBase uint16
}

// ExceptionError is a device exception reply.
type ExceptionError struct {
	Function  byte
	Exception byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus exception: fc=%d code=%d", e.Function, e.Exception)
}

// Code returns the exception code.
func (e *ExceptionError) Code() uint16 { return uint16(e.Exception) }

// New creates a connected Modbus TCP client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
		base:    cfg.AddressBase,
	}, nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ReadHoldingRegisters reads qty registers starting at the register address addr.
func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	pdu, err := c.pduAddress(addr)
	if err != nil {
		return nil, err
	}
	if qty == 0 {
		return nil, nil
	}

	raw, err := c.client.ReadHoldingRegisters(pdu, qty)
	if err != nil {
		var me *modbus.ModbusError
		if errors.As(err, &me) {
			return nil, &ExceptionError{Function: me.FunctionCode, Exception: me.ExceptionCode}
		}
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, errors.New("modbus: read-registers byte count not even")
	}

	return unpackRegisters(raw), nil
}

func (c *Client) pduAddress(addr uint16) (uint16, error) {
	if addr < c.base {
		return 0, fmt.Errorf("modbus client: address %d below base %d", addr, c.base)
	}
	return addr - c.base, nil
}

// ---- helpers (pure geometry) ----

// unpackRegisters decodes big-endian register words.
func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
