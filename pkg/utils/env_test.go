package utils

import (
	"os"
	"testing"
)

func TestGetEnvCaches(t *testing.T) {
	const key = "CESIUM_TEST_CACHE"
	clearEnvCache(key)
	os.Setenv(key, "one")
	defer os.Unsetenv(key)

	if v, ok := getEnv(key); !ok || v != "one" {
		t.Fatalf("getEnv=%q ok=%t", v, ok)
	}

	// The cached value survives an environment change until cleared.
	os.Setenv(key, "two")
	if v, _ := getEnv(key); v != "one" {
		t.Fatalf("cache bypassed, got %q", v)
	}
	clearEnvCache(key)
	if v, _ := getEnv(key); v != "two" {
		t.Fatalf("cache not cleared, got %q", v)
	}
}

func TestEnvOrDefault(t *testing.T) {
	const key = "CESIUM_TEST_DEFAULT"
	os.Unsetenv(key)
	if v := EnvOrDefault(key, "fallback"); v != "fallback" {
		t.Fatalf("got %q", v)
	}
	os.Setenv(key, "set")
	defer os.Unsetenv(key)
	if v := EnvOrDefault(key, "fallback"); v != "set" {
		t.Fatalf("got %q", v)
	}
}

func TestEnvOrDefaultInt(t *testing.T) {
	const key = "CESIUM_TEST_INT"
	os.Setenv(key, "not a number")
	defer os.Unsetenv(key)
	if v := EnvOrDefaultInt(key, 7); v != 7 {
		t.Fatalf("got %d", v)
	}
	os.Setenv(key, "42")
	if v := EnvOrDefaultInt(key, 7); v != 42 {
		t.Fatalf("got %d", v)
	}
}

func TestEnvOrDefaultUint64(t *testing.T) {
	const key = "CESIUM_TEST_UINT"
	os.Setenv(key, "-1")
	defer os.Unsetenv(key)
	if v := EnvOrDefaultUint64(key, 9); v != 9 {
		t.Fatalf("got %d", v)
	}
	os.Setenv(key, "18446744073709551615")
	if v := EnvOrDefaultUint64(key, 9); v != 18446744073709551615 {
		t.Fatalf("got %d", v)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatalf("Wrap(nil) must be nil")
	}
	err := Wrap(os.ErrNotExist, "context")
	if err == nil || err.Error() != "context: file does not exist" {
		t.Fatalf("got %v", err)
	}
}
