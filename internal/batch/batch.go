// internal/batch/batch.go
package batch

import (
	"fmt"
	"sort"
	"strings"
)

// Read is one wire read transaction: Count consecutive registers from Start.
type Read struct {
	Start uint16
	Count uint16
}

// Last returns the last address covered by the read.
func (r Read) Last() uint16 {
	return r.Start + r.Count - 1
}

func (r Read) String() string {
	return fmt.Sprintf("(%d,%d)", r.Start, r.Count)
}

// Result is the raw outcome for a single address.
type Result struct {
	Value   uint16
	Success bool
}

// ResultMap holds one connection's results for the current cycle, keyed by address.
type ResultMap map[uint16]Result

// SortedAddresses returns the keys ascending. Use it whenever the map is
// emitted or logged so output never depends on map iteration order.
func (m ResultMap) SortedAddresses() []uint16 {
	out := make([]uint16, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m ResultMap) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, a := range m.SortedAddresses() {
		if i > 0 {
			sb.WriteString(", ")
		}
		r := m[a]
		if r.Success {
			fmt.Fprintf(&sb, "%d:%d", a, r.Value)
		} else {
			fmt.Fprintf(&sb, "%d:err", a)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// Batcher turns an address list into a FIFO queue of contiguous reads and
// collects per-address results as replies for the queue head arrive.
//
// Not safe for concurrent use; a Batcher is owned by exactly one poller.
type Batcher struct {
	queue   []Read
	results ResultMap
}

// New returns an empty Batcher.
func New() *Batcher {
	return &Batcher{results: make(ResultMap)}
}

// Reset clears prior results and queue, then greedily groups addresses into
// contiguous runs of at most maxConsecutive registers.
// A maxConsecutive of 0 is treated as 1.
func (b *Batcher) Reset(addresses []uint16, maxConsecutive uint16) {
	b.results = make(ResultMap)
	b.queue = b.queue[:0]

	if maxConsecutive == 0 {
		maxConsecutive = 1
	}

	addrs := normalize(addresses)

	for i := 0; i < len(addrs); {
		start := addrs[i]
		count := uint16(1)
		for i+int(count) < len(addrs) &&
			count < maxConsecutive &&
			addrs[i+int(count)] == addrs[i+int(count)-1]+1 {
			count++
		}
		b.queue = append(b.queue, Read{Start: start, Count: count})
		i += int(count)
	}
}

// HasNext reports whether a read is still pending.
func (b *Batcher) HasNext() bool {
	return len(b.queue) > 0
}

// Next returns the pending head read. It does not mutate the queue.
// The second return value is false when the queue is empty.
func (b *Batcher) Next() (Read, bool) {
	if len(b.queue) == 0 {
		return Read{}, false
	}
	return b.queue[0], true
}

// Len returns how many reads are still queued.
func (b *Batcher) Len() int {
	return len(b.queue)
}

// Pending returns a copy of the queued reads in issue order.
func (b *Batcher) Pending() []Read {
	out := make([]Read, len(b.queue))
	copy(out, b.queue)
	return out
}

// AddSuccess records values for the head read and pops it.
// (start, count) must equal the head exactly and len(values) must equal count;
// anything else is treated as a stale or foreign reply and changes nothing.
func (b *Batcher) AddSuccess(start, count uint16, values []uint16) bool {
	if !b.matchesHead(start, count) || len(values) != int(count) {
		return false
	}
	for i, v := range values {
		b.results[start+uint16(i)] = Result{Value: v, Success: true}
	}
	b.queue = b.queue[1:]
	return true
}

// AddError records a failure for every address of the head read and pops it.
// Same matching rule as AddSuccess.
func (b *Batcher) AddError(start, count uint16) bool {
	if !b.matchesHead(start, count) {
		return false
	}
	for i := uint16(0); i < count; i++ {
		b.results[start+i] = Result{}
	}
	b.queue = b.queue[1:]
	return true
}

// AddAllErrors fails every read still queued.
func (b *Batcher) AddAllErrors() {
	for len(b.queue) > 0 {
		head := b.queue[0]
		b.AddError(head.Start, head.Count)
	}
}

// SplitNextToSingleReads replaces the head read with Count single-register
// reads, in address order, at the front of the queue.
func (b *Batcher) SplitNextToSingleReads() {
	if len(b.queue) == 0 || b.queue[0].Count <= 1 {
		return
	}
	head := b.queue[0]

	split := make([]Read, 0, int(head.Count)+len(b.queue)-1)
	for i := uint16(0); i < head.Count; i++ {
		split = append(split, Read{Start: head.Start + i, Count: 1})
	}
	b.queue = append(split, b.queue[1:]...)
}

// ResultMap returns a snapshot of the results accumulated this cycle.
func (b *Batcher) ResultMap() ResultMap {
	out := make(ResultMap, len(b.results))
	for a, r := range b.results {
		out[a] = r
	}
	return out
}

func (b *Batcher) matchesHead(start, count uint16) bool {
	head, ok := b.Next()
	return ok && head.Start == start && head.Count == count
}

// normalize returns a sorted copy of addrs without duplicates.
func normalize(addrs []uint16) []uint16 {
	out := make([]uint16, len(addrs))
	copy(out, addrs)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for i, a := range out {
		if i > 0 && a == out[n-1] {
			continue
		}
		out[n] = a
		n++
	}
	return out[:n]
}
