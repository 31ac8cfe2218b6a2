package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/wordbank/internal/cli"
	"github.com/calvinalkan/wordbank/internal/settings"
)

func TestSettings_DefaultsAndChangeLanguage(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	if got, want := c.MustRun("settings"), "language=en-GB"; got != want {
		t.Fatalf("settings=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("settings", "--language", "zh_tw"), "language=zh-TW"; got != want {
		t.Fatalf("settings=%q, want=%q", got, want)
	}

	// Persisted for the next session.
	if got, want := c.MustRun("settings"), "language=zh-TW"; got != want {
		t.Fatalf("settings=%q, want=%q", got, want)
	}

	if _, err := os.Stat(filepath.Join(c.DataDir(), settings.DocName)); err != nil {
		t.Fatalf("settings document missing: %v", err)
	}

	cli.AssertContains(t, c.MustFail("settings", "--language", "fr-FR"), "unknown language")
}

func TestPrintConfig_ShowsValuesAndSources(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Env["WORDBANK_CONTEXT"] = "desk"

	out := c.MustRun("print-config")

	for _, want := range []string{
		"effective_cwd=" + c.Dir,
		"data_dir=" + c.DataDir(),
		"context=desk",
		"bridge=journal",
		"poll_interval=10ms",
		"log_level=error",
		"# sources",
		"project_config=" + filepath.Join(c.Dir, ".wordbank.json"),
		"env=WORDBANK_CONTEXT",
	} {
		cli.AssertContains(t, out, want)
	}

	cli.AssertNotContains(t, out, "redis_addr=")
	cli.AssertNotContains(t, out, "global_config=")
}

func TestPrintConfig_GlobalConfigFromXDG(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("xdg/wordbank/config.json", `{
		// comments are allowed
		"lock_timeout": "2s",
	}`)
	c.Env["XDG_CONFIG_HOME"] = filepath.Join(c.Dir, "xdg")

	out := c.MustRun("print-config")

	cli.AssertContains(t, out, "lock_timeout=2s")
	cli.AssertContains(t, out, "global_config="+filepath.Join(c.Dir, "xdg", "wordbank", "config.json"))
}
