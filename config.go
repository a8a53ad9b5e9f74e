package vgic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Distributor layout defaults matching the QEMU virt machine.
const (
	DefaultDistributorBase  = 0x08000000
	DefaultDistributorSize  = 0x1000
	DefaultCPUInterfaceBase = 0x08010000
	DefaultCPUInterfaceSize = 0x2000

	// A typical GIC implements four list registers. Probe the hardware
	// through the hypervisor when it reports a different count.
	DefaultListRegisters = 4

	maxListRegisters = 16
	maxVCPUs         = 8 // GICv2 ITARGETSR limit
)

// Config describes one distributor instance. The zero value plus
// defaults yields a single-vCPU QEMU-virt layout.
type Config struct {
	VCPUs int `yaml:"vcpus"`

	DistributorBase uint64 `yaml:"distributor_base"`
	DistributorSize uint64 `yaml:"distributor_size"`

	// CPU interface window, only used for the device-tree node; the CPU
	// interface itself is provided by the hypervisor.
	CPUInterfaceBase uint64 `yaml:"cpu_interface_base"`
	CPUInterfaceSize uint64 `yaml:"cpu_interface_size"`

	ListRegisters int `yaml:"list_registers"`
}

func (c *Config) applyDefaults() {
	if c.VCPUs == 0 {
		c.VCPUs = 1
	}
	if c.DistributorBase == 0 {
		c.DistributorBase = DefaultDistributorBase
	}
	if c.DistributorSize == 0 {
		c.DistributorSize = DefaultDistributorSize
	}
	if c.CPUInterfaceBase == 0 {
		c.CPUInterfaceBase = DefaultCPUInterfaceBase
	}
	if c.CPUInterfaceSize == 0 {
		c.CPUInterfaceSize = DefaultCPUInterfaceSize
	}
	if c.ListRegisters == 0 {
		c.ListRegisters = DefaultListRegisters
	}
}

func (c *Config) validate() error {
	if c.VCPUs < 1 || c.VCPUs > maxVCPUs {
		return fmt.Errorf("vcpu count %d out of range [1, %d]", c.VCPUs, maxVCPUs)
	}
	if c.ListRegisters < 1 || c.ListRegisters > maxListRegisters {
		return fmt.Errorf("list register count %d out of range [1, %d]", c.ListRegisters, maxListRegisters)
	}
	if c.DistributorSize < 0x1000 {
		return fmt.Errorf("distributor window %#x smaller than the register file", c.DistributorSize)
	}
	return nil
}

// LoadConfig reads and parses a distributor config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("vgic: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("vgic: parsing config %s: %w", path, err)
	}
	return cfg, nil
}
