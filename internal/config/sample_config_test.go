package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Sample Config Tests
// =============================================================================

// TestSampleConfigEmbedded verifies config.sample.yaml is embedded in binary via go:embed
func TestSampleConfigEmbedded(t *testing.T) {
	content := GetSampleConfig()

	if content == "" {
		t.Error("expected embedded sample config to have content, got empty string")
	}

	for _, section := range []string{"endpoint:", "reconcile:", "analytics:", "notification:", "serve:"} {
		if !strings.Contains(content, section) {
			t.Errorf("expected sample config to contain %q section", section)
		}
	}
}

// TestSampleConfigParsesToDefaults verifies the sample decodes to the same values DefaultConfig returns
func TestSampleConfigParsesToDefaults(t *testing.T) {
	cfg, err := Parse([]byte(GetSampleConfig()))
	if err != nil {
		t.Fatalf("Parse(sample) error = %v", err)
	}
	def := DefaultConfig()

	if cfg.Endpoint.URL != def.Endpoint.URL {
		t.Errorf("endpoint.url = %q, want %q", cfg.Endpoint.URL, def.Endpoint.URL)
	}
	if cfg.GetEndpointTimeout() != def.GetEndpointTimeout() {
		t.Errorf("endpoint timeout = %v, want %v", cfg.GetEndpointTimeout(), def.GetEndpointTimeout())
	}
	if cfg.IsAnalyticsEnabled() != def.IsAnalyticsEnabled() {
		t.Errorf("analytics.enabled = %v, want %v", cfg.IsAnalyticsEnabled(), def.IsAnalyticsEnabled())
	}
	if cfg.Notification.ViewBuffer != def.Notification.ViewBuffer {
		t.Errorf("notification.view_buffer = %d, want %d", cfg.Notification.ViewBuffer, def.Notification.ViewBuffer)
	}
	if !cfg.IsSpeculativeUpdatesEnabled() || !cfg.IsNewestFirst() {
		t.Error("expected speculative updates and newest-first on in the sample")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config should validate, got %v", err)
	}
}

// TestSampleConfigCopyOnFirstRun verifies first run copies sample to ~/.config/todoq/config.yaml
func TestSampleConfigCopyOnFirstRun(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "config")
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	t.Setenv("HOME", tmpDir)

	if _, err := Load(""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(configDir, "todoq", "config.yaml"))
	if err != nil {
		t.Fatalf("failed to read created config file: %v", err)
	}
	if string(data) != GetSampleConfig() {
		t.Error("expected created config to be a verbatim copy of the sample")
	}
}

// TestSampleConfigComments verifies sample contains inline YAML comments explaining options
func TestSampleConfigComments(t *testing.T) {
	content := GetSampleConfig()

	commentCount := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			commentCount++
		}
	}
	if commentCount < 10 {
		t.Errorf("expected sample config to have at least 10 comment lines for documentation, got %d", commentCount)
	}

	for _, keyword := range []string{"todoq", "TODOQ_", "rolled back", "todoq serve"} {
		if !strings.Contains(content, keyword) {
			t.Errorf("expected sample config to contain documentation about %q", keyword)
		}
	}
}
