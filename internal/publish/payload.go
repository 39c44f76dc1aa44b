// internal/publish/payload.go
package publish

import (
	"encoding/json"
	"time"

	"github.com/tamzrod/modbus-scope/internal/orchestrator"
	"github.com/tamzrod/modbus-scope/internal/register"
)

// Payload is the JSON document published once per cycle.
type Payload struct {
	Cycle       string             `json:"cycle"`
	Timestamp   time.Time          `json:"ts"`
	TookMs      float64            `json:"took_ms"`
	Values      []ValueEntry       `json:"values"`
	Connections []ConnectionStatus `json:"connections"`
}

type ValueEntry struct {
	Index      int     `json:"index"`
	Connection uint8   `json:"connection"`
	Address    uint16  `json:"address"`
	Width      uint8   `json:"width"`
	Signed     bool    `json:"signed"`
	Value      float64 `json:"value"`
	Success    bool    `json:"success"`
}

type ConnectionStatus struct {
	ID        uint8  `json:"id"`
	Label     string `json:"label"`
	Enabled   bool   `json:"enabled"`
	Successes uint32 `json:"successes"`
	Errors    uint32 `json:"errors"`
	LastError string `json:"last_error,omitempty"`

	// Since start.
	TotalSuccesses uint64 `json:"total_successes"`
	TotalErrors    uint64 `json:"total_errors"`
}

// NewPayload pairs each value with its descriptor by position.
func NewPayload(res orchestrator.CycleResult, descs []register.Descriptor) Payload {
	p := Payload{
		Cycle:       res.ID.String(),
		Timestamp:   res.At.UTC(),
		TookMs:      float64(res.Took.Microseconds()) / 1000,
		Values:      make([]ValueEntry, 0, len(res.Values)),
		Connections: make([]ConnectionStatus, 0, len(res.Connections)),
	}

	for i, v := range res.Values {
		e := ValueEntry{Index: i, Value: v.Value, Success: v.Success}
		if i < len(descs) {
			d := descs[i]
			e.Connection = d.ConnectionID
			e.Address = d.Address
			e.Width = uint8(d.Width)
			e.Signed = d.Signed
		}
		p.Values = append(p.Values, e)
	}

	for _, cs := range res.Connections {
		c := ConnectionStatus{
			ID:        cs.ConnectionID,
			Label:     cs.Label,
			Enabled:   cs.Enabled,
			Successes: cs.CycleSuccesses,
			Errors:    cs.CycleErrors,

			TotalSuccesses: cs.Successes,
			TotalErrors:    cs.Errors,
		}
		if cs.LastErr != nil {
			c.LastError = cs.LastErr.Error()
		}
		p.Connections = append(p.Connections, c)
	}

	return p
}

// Marshal encodes the payload.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
