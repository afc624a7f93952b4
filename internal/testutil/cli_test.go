package testutil

import (
	"os"
	"strings"
	"testing"
)

func TestCLITestIsolation(t *testing.T) {
	cli := NewCLITest(t)

	if !strings.HasPrefix(os.Getenv("XDG_CONFIG_HOME"), cli.TmpDir()) {
		t.Errorf("XDG_CONFIG_HOME should live under the test dir, got %s", os.Getenv("XDG_CONFIG_HOME"))
	}
	if !strings.HasPrefix(cli.Config().DataDir, cli.TmpDir()) {
		t.Errorf("data dir should live under the test dir, got %s", cli.Config().DataDir)
	}
	if _, err := os.Stat(cli.ConfigPath()); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
	if !strings.HasSuffix(cli.Config().Endpoint, cli.Server().Path()) {
		t.Errorf("endpoint %s should target the stub path %s", cli.Config().Endpoint, cli.Server().Path())
	}
}

func TestCLITestSeededServer(t *testing.T) {
	cli := NewCLITestWithItems(t, "Buy milk", "Walk dog")

	stdout := cli.MustExecute("ls")

	AssertContains(t, stdout, "Buy milk")
	AssertContains(t, stdout, "Walk dog")
	AssertNotContains(t, stdout, "No items")
	if got := cli.Server().Requests(); len(got) != 1 || got[0] != "GET "+cli.Server().Path() {
		t.Errorf("expected a single list request, got %v", got)
	}
}

func TestCLITestJournalPath(t *testing.T) {
	cli := NewCLITest(t)

	cli.MustExecute("add", "Buy milk")

	if _, err := os.Stat(cli.AnalyticsPath()); err != nil {
		t.Errorf("journal should be created at %s: %v", cli.AnalyticsPath(), err)
	}
}

func TestExecuteAndFailReturnsOutput(t *testing.T) {
	cli := NewCLITest(t)

	_, stderr := cli.ExecuteAndFail("rm", "nope")

	AssertContains(t, stderr, "invalid item id")
}
