package vgic

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	g, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := g.Config()
	if cfg.VCPUs != 1 {
		t.Fatalf("VCPUs = %d, want 1", cfg.VCPUs)
	}
	if cfg.DistributorBase != DefaultDistributorBase {
		t.Fatalf("DistributorBase = %#x", cfg.DistributorBase)
	}
	if cfg.ListRegisters != DefaultListRegisters {
		t.Fatalf("ListRegisters = %d", cfg.ListRegisters)
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := New(Config{VCPUs: maxVCPUs + 1}); err == nil {
		t.Fatalf("vcpu count beyond GICv2 targets should fail")
	}
	if _, err := New(Config{ListRegisters: -1}); err == nil {
		t.Fatalf("negative list register count should fail")
	}
	if _, err := New(Config{DistributorSize: 0x100}); err == nil {
		t.Fatalf("undersized distributor window should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vgic.yml")
	body := []byte("vcpus: 4\ndistributor_base: 0x8000000\nlist_registers: 8\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.VCPUs != 4 || cfg.ListRegisters != 8 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DistributorBase != 0x8000000 {
		t.Fatalf("DistributorBase = %#x", cfg.DistributorBase)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("missing config should fail")
	}
}
