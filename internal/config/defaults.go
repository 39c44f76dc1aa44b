// internal/config/defaults.go
package config

const (
	DefaultIntervalMs     = 1000
	DefaultTimeoutMs      = 1000
	DefaultMaxConsecutive = 125
	DefaultAddressBase    = 40001

	// MaxReadQuantity is the FC3 protocol limit.
	MaxReadQuantity = 125
)
