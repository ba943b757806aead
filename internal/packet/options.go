package packet

import (
	"github.com/google/gopacket"
	"github.com/srun-soft/hexcap/configs"
)

// Options bound what a packet may become.
type Options struct {
	// MTU is the default maximum size of a decoded packet.
	MTU               int
	MaxGeneratorCount int
	// MaxExpansion caps the number of packets one generate statement expands to.
	MaxExpansion int
	Serialize    gopacket.SerializeOptions
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MTU:               1500,
		MaxGeneratorCount: 65535,
		MaxExpansion:      65536,
	}
}

// NewOptions converts the packet section of the configuration.
func NewOptions(c configs.PacketConfig) Options {
	return Options{
		MTU:               c.MTU,
		MaxGeneratorCount: c.MaxGeneratorCount,
		MaxExpansion:      c.MaxExpansion,
		Serialize: gopacket.SerializeOptions{
			FixLengths:       c.FixLengths,
			ComputeChecksums: c.ComputeChecksums,
		},
	}
}
