package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Mempool.PackIntervalCount != 2500 || c.Mempool.PackMinRefs != 5 {
		t.Fatalf("mempool defaults %+v", c.Mempool)
	}
	if c.Mempool.PackProportion != 0.45 {
		t.Fatalf("pack proportion %v", c.Mempool.PackProportion)
	}
	if c.Storage.DBPath != ".cesiumdb" {
		t.Fatalf("db path %q", c.Storage.DBPath)
	}
}

func TestWriteDefaultAndLoad(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	if err := WriteDefault(filepath.Join("config", "default.yaml")); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mempool.PackIntervalCount != 2500 {
		t.Fatalf("loaded interval %d", cfg.Mempool.PackIntervalCount)
	}
	if cfg.Node.ListenAddr != ":8799" {
		t.Fatalf("loaded listen addr %q", cfg.Node.ListenAddr)
	}
}

func TestLoadWithoutFilesFallsBack(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mempool.PackMinRefs != 5 {
		t.Fatalf("builtin defaults not applied: %+v", cfg.Mempool)
	}
}
