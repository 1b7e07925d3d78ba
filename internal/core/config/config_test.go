package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":8091" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("max upload=%d", cfg.MaxUploadBytes)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("cache ttl=%v", cfg.CacheTTL)
	}
	if cfg.Invalidation.Enabled {
		t.Fatalf("invalidation should default off")
	}
	if cfg.PrefilterRes != 5 {
		t.Fatalf("prefilter res=%d", cfg.PrefilterRes)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("FOOTPRINT_CACHE_TTL", "90s")
	t.Setenv("INVALIDATION_ENABLED", "true")
	t.Setenv("VIEWPORT_PADDING", "0.1")

	cfg := FromEnv()
	if cfg.Addr != ":9000" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Fatalf("max upload=%d", cfg.MaxUploadBytes)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Fatalf("cache ttl=%v", cfg.CacheTTL)
	}
	if !cfg.Invalidation.Enabled {
		t.Fatalf("invalidation not enabled")
	}
	if cfg.ViewportPadding != 0.1 {
		t.Fatalf("padding=%v", cfg.ViewportPadding)
	}
}

func TestFromEnv_ClampsPrefilterRes(t *testing.T) {
	t.Setenv("PREFILTER_H3_RES", "99")
	if got := FromEnv().PrefilterRes; got != 15 {
		t.Fatalf("res=%d want 15", got)
	}
	t.Setenv("PREFILTER_H3_RES", "-3")
	if got := FromEnv().PrefilterRes; got != 0 {
		t.Fatalf("res=%d want 0", got)
	}
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("MAX_ATTR_COLUMNS", "lots")
	t.Setenv("FOOTPRINT_CACHE_TTL", "soon")
	t.Setenv("INVALIDATION_ENABLED", "maybe")

	cfg := FromEnv()
	if cfg.MaxAttrColumns != 8 {
		t.Fatalf("max attr columns=%d", cfg.MaxAttrColumns)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("cache ttl=%v", cfg.CacheTTL)
	}
	if cfg.Invalidation.Enabled {
		t.Fatalf("unparsable bool must keep the default")
	}
}
