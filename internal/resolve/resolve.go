// internal/resolve/resolve.go
package resolve

import (
	"github.com/tamzrod/modbus-scope/internal/batch"
	"github.com/tamzrod/modbus-scope/internal/register"
)

// WordOrder selects how two consecutive registers combine into 32 bits.
type WordOrder uint8

const (
	// LittleEndian: the register at A is the low word, A+1 the high word.
	LittleEndian WordOrder = iota
	// BigEndian: the register at A is the high word, A+1 the low word.
	BigEndian
)

func (o WordOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// Value is one resolved entry handed to consumers.
type Value struct {
	Value   float64
	Success bool
}

// Combine merges the words at A (first) and A+1 (second) per order.
func Combine(order WordOrder, first, second uint16) uint32 {
	if order == BigEndian {
		return uint32(first)<<16 | uint32(second)
	}
	return uint32(second)<<16 | uint32(first)
}

// Resolver converts raw per-address results into typed per-descriptor values.
// Output order always follows the descriptor set.
type Resolver struct {
	set     register.Set
	orders  map[uint8]WordOrder
	results []Value
}

// New creates a resolver for set. orders gives the word order per connection;
// connections missing from orders use LittleEndian.
func New(set register.Set, orders map[uint8]WordOrder) *Resolver {
	o := make(map[uint8]WordOrder, len(orders))
	for id, v := range orders {
		o[id] = v
	}
	return &Resolver{set: set, orders: o}
}

// AddressList returns the sorted, deduplicated addresses to read for connectionID.
func (r *Resolver) AddressList(connectionID uint8) []uint16 {
	return r.set.AddressList(connectionID)
}

// StartRead resets the output to one failed entry per descriptor.
func (r *Resolver) StartRead() {
	r.results = make([]Value, r.set.Len())
}

// ProcessPartialResult resolves every descriptor bound to connectionID from m.
// Addresses absent from m count as failed.
func (r *Resolver) ProcessPartialResult(m batch.ResultMap, connectionID uint8) {
	if len(r.results) != r.set.Len() {
		r.StartRead()
	}

	order := r.orders[connectionID]

	for i := 0; i < r.set.Len(); i++ {
		d := r.set.At(i)
		if d.ConnectionID != connectionID {
			continue
		}
		r.results[i] = resolveOne(d, m, order)
	}
}

// FinishRead returns the resolved list, one entry per descriptor, in order.
func (r *Resolver) FinishRead() []Value {
	if len(r.results) != r.set.Len() {
		r.StartRead()
	}
	out := make([]Value, len(r.results))
	copy(out, r.results)
	return out
}

func resolveOne(d register.Descriptor, m batch.ResultMap, order WordOrder) Value {
	first, ok := m[d.Address]
	if !ok || !first.Success {
		return Value{}
	}

	if !d.Is32Bit() {
		if d.Signed {
			return Value{Value: float64(int16(first.Value)), Success: true}
		}
		return Value{Value: float64(first.Value), Success: true}
	}

	if d.Address == 0xFFFF {
		return Value{}
	}
	second, ok := m[d.Address+1]
	if !ok || !second.Success {
		return Value{}
	}

	combined := Combine(order, first.Value, second.Value)
	if d.Signed {
		return Value{Value: float64(int32(combined)), Success: true}
	}
	return Value{Value: float64(combined), Success: true}
}
