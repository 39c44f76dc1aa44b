// internal/register/register.go
package register

import (
	"fmt"
	"sort"
)

// Width is the number of bits a descriptor spans on the device.
type Width uint8

const (
	Width16 Width = 16
	Width32 Width = 32
)

// Words returns how many consecutive holding registers the width occupies.
func (w Width) Words() int {
	if w == Width32 {
		return 2
	}
	return 1
}

// Descriptor describes one value to read.
// Value type: comparable with == over all fields.
type Descriptor struct {
	Address      uint16
	ConnectionID uint8
	Width        Width
	Signed       bool
}

// Is32Bit reports whether the descriptor also covers Address+1.
func (d Descriptor) Is32Bit() bool {
	return d.Width == Width32
}

func (d Descriptor) String() string {
	sign := "unsigned"
	if d.Signed {
		sign = "signed"
	}
	return fmt.Sprintf("[%d, %s, %d bit, conn %d]", d.Address, sign, d.Width, d.ConnectionID)
}

// Set is the ordered, immutable list of configured descriptors.
type Set struct {
	descs []Descriptor
}

// NewSet copies descs so later edits by the caller cannot leak into a cycle.
func NewSet(descs []Descriptor) Set {
	cp := make([]Descriptor, len(descs))
	copy(cp, descs)
	return Set{descs: cp}
}

// Len returns the number of descriptors.
func (s Set) Len() int { return len(s.descs) }

// At returns the descriptor at index i.
func (s Set) At(i int) Descriptor { return s.descs[i] }

// Descriptors returns a copy of the descriptor list in configured order.
func (s Set) Descriptors() []Descriptor {
	cp := make([]Descriptor, len(s.descs))
	copy(cp, s.descs)
	return cp
}

// Connections returns the distinct connection ids referenced, ascending.
func (s Set) Connections() []uint8 {
	seen := make(map[uint8]struct{})
	var out []uint8
	for _, d := range s.descs {
		if _, ok := seen[d.ConnectionID]; ok {
			continue
		}
		seen[d.ConnectionID] = struct{}{}
		out = append(out, d.ConnectionID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddressList returns the sorted, deduplicated addresses that must be read for
// connectionID. A 32-bit descriptor at A contributes A and A+1.
func (s Set) AddressList(connectionID uint8) []uint16 {
	seen := make(map[uint16]struct{})
	var out []uint16

	add := func(a uint16) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	for _, d := range s.descs {
		if d.ConnectionID != connectionID {
			continue
		}
		add(d.Address)
		// 0xFFFF has no successor; config validation rejects that case.
		if d.Is32Bit() && d.Address < 0xFFFF {
			add(d.Address + 1)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
