package id

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateLength(t *testing.T) {
	id, err := Generate(24)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(id) != 24 {
		t.Errorf("len = %d, want 24", len(id))
	}

	id, err = Generate(0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(id) != DefaultLength {
		t.Errorf("len = %d, want default %d", len(id), DefaultLength)
	}
}

func TestNewDeviceIDPrefix(t *testing.T) {
	id, err := NewDeviceID()
	if err != nil {
		t.Fatalf("NewDeviceID() error = %v", err)
	}
	if !strings.HasPrefix(id, PrefixDevice+"_") {
		t.Errorf("id %q missing %q prefix", id, PrefixDevice)
	}
}

func TestLoadOrCreateIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "device_id")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if first == "" {
		t.Fatal("LoadOrCreate() returned empty id")
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate() second call error = %v", err)
	}
	if first != second {
		t.Errorf("device id changed across calls: %q != %q", first, second)
	}
}
