package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DOWNLOAD_DIR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ExtractorPath != "yt-dlp" {
		t.Fatalf("ExtractorPath = %q", cfg.ExtractorPath)
	}
	if cfg.FileRetention != time.Hour {
		t.Fatalf("FileRetention = %s, want 1h", cfg.FileRetention)
	}
	if cfg.HTTPWriteTimeout != 0 {
		t.Fatalf("HTTPWriteTimeout = %s, want 0 for streaming", cfg.HTTPWriteTimeout)
	}
	if cfg.MergeBeforeStream {
		t.Fatal("MergeBeforeStream should default to off")
	}
}

func TestLoadConfigJobRetentionNeverBelowFileRetention(t *testing.T) {
	t.Setenv("FILE_RETENTION_MINUTES", "120")
	t.Setenv("JOB_RETENTION_MINUTES", "30")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobRetention != cfg.FileRetention {
		t.Fatalf("JobRetention = %s, want raised to %s", cfg.JobRetention, cfg.FileRetention)
	}
}

func TestLoadConfigRejectsZeroFileRetention(t *testing.T) {
	t.Setenv("FILE_RETENTION_MINUTES", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted zero file retention")
	}
}

func TestLoadConfigCollectsPlatformOverrides(t *testing.T) {
	t.Setenv("PROXY_URL_YOUTUBE", "socks5://127.0.0.1:9050")
	t.Setenv("COOKIES_FILE_INSTAGRAM", "/etc/mediadrop/ig.txt")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got := cfg.PlatformProxies["youtube"]; got != "socks5://127.0.0.1:9050" {
		t.Fatalf("PlatformProxies[youtube] = %q", got)
	}
	if got := cfg.PlatformCookies["instagram"]; got != "/etc/mediadrop/ig.txt" {
		t.Fatalf("PlatformCookies[instagram] = %q", got)
	}
}

func TestLoadConfigSplitsCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}
