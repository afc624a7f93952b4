// Package testutil provides shared test utilities for CLI testing across packages.
// This enables co-located CLI tests while maintaining consistent test infrastructure.
package testutil

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"

	"todoq/cmd/todoq/cmd"
	"todoq/internal/stubserver"
)

// defaultTestConfig is the minimal config used by most test constructors to ensure isolation.
const defaultTestConfig = "# test config\nanalytics:\n  enabled: true\n"

// CLITest provides a test helper for running CLI commands in isolation against
// an in-memory collection server.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	server     *stubserver.Server
}

// NewCLITest creates a new CLI test helper with an empty collection.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()
	return NewCLITestWithItems(t)
}

// NewCLITestWithItems creates a new CLI test helper whose server starts with the given titles.
// Items get ids 1, 2, ... in order.
func NewCLITestWithItems(t *testing.T, titles ...string) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg-config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "xdg-data"))
	t.Setenv("TODOQ_ANALYTICS_ENABLED", "")

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(defaultTestConfig), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	logger, _ := test.NewNullLogger()
	server := stubserver.New(stubserver.Config{Seed: titles}, logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	cfg := &cmd.Config{
		ConfigPath: configPath,
		Endpoint:   ts.URL + server.Path(),
		DataDir:    filepath.Join(tmpDir, "data"),
	}

	return &CLITest{
		t:          t,
		cfg:        cfg,
		tmpDir:     tmpDir,
		configPath: configPath,
		server:     server,
	}
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// Server returns the collection server the CLI talks to.
func (c *CLITest) Server() *stubserver.Server {
	return c.server
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// AnalyticsPath returns where the mutation journal is written.
func (c *CLITest) AnalyticsPath() string {
	return filepath.Join(c.cfg.DataDir, "analytics.db")
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()

	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// ExecuteJSON runs a CLI command with --json and decodes the single JSON document it prints.
func (c *CLITest) ExecuteJSON(args ...string) (map[string]interface{}, int) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(append(args, "--json")...)
	var out map[string]interface{}
	if err := sonic.ConfigStd.Unmarshal([]byte(strings.TrimSpace(stdout)), &out); err != nil {
		c.t.Fatalf("expected JSON output, got %q (stderr=%s): %v", stdout, stderr, err)
	}
	return out, exitCode
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies the "result" field of a JSON response.
func AssertResultCode(t *testing.T, response map[string]interface{}, expectedCode string) {
	t.Helper()
	if got, _ := response["result"].(string); got != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull response: %v", expectedCode, got, response)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)
