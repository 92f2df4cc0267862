package config

import "testing"

func TestDefaultFlags(t *testing.T) {
	c := Default()
	if !c.HasFlag(FlagDefault) {
		t.Fatalf("expected default flag set")
	}
	if c.HasFlag(FlagStrictFloatingPoint) {
		t.Fatalf("did not expect strict-fp by default")
	}
	if c.OptLevel != 2 {
		t.Fatalf("expected default opt level 2, got %d", c.OptLevel)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("KRONOS_CORE_LIBRARY_VERSION", "1.2.3")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LibraryVersion != "1.2.3" {
		t.Fatalf("expected env override, got %q", cfg.LibraryVersion)
	}
}

func TestBindScoped(t *testing.T) {
	before := Current()
	scoped := Default()
	scoped.OptLevel = 0
	Bind(scoped, func() {
		if Current().OptLevel != 0 {
			t.Fatalf("expected scoped opt level 0 inside Bind")
		}
	})
	if Current() != before {
		t.Fatalf("expected ambient config restored after Bind")
	}
}
