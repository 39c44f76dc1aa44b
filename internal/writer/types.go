// internal/writer/types.go
package writer

// StatusPlan is where one connection's status block lives.
type StatusPlan struct {
	ConnectionID uint8
	Endpoint     string
	UnitID       uint8
	Slot         uint16
	DeviceName   string
}

// endpointClient is the exact contract the writers use.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
