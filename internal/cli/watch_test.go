package cli_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/calvinalkan/wordbank/internal/cli"
)

// runWatch starts "wb watch" in the background and returns a channel with
// its stdout once it exits.
func runWatch(t *testing.T, c *cli.CLI, args ...string) <-chan string {
	t.Helper()

	done := make(chan string, 1)

	go func() {
		var out, errOut bytes.Buffer

		full := append([]string{"wb", "--cwd", c.Dir, "watch"}, args...)
		code := cli.Run(strings.NewReader(""), &out, &errOut, full, c.Env, nil)

		if code != 0 {
			t.Errorf("watch exitCode=%d, stderr=%s", code, errOut.String())
		}

		done <- out.String()
	}()

	return done
}

// untilDone repeats fn until the watcher exits. The watcher only sees
// announcements published after it started, so a single change may be missed.
func untilDone(t *testing.T, done <-chan string, fn func()) string {
	t.Helper()

	deadline := time.After(10 * time.Second)

	for {
		fn()

		select {
		case out := <-done:
			return out
		case <-time.After(30 * time.Millisecond):
		case <-deadline:
			t.Fatal("watch did not exit")

			return ""
		}
	}
}

func TestWatch_PrintsPackageChangesFromOtherSessions(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("w.csv", "moon,月亮\n")

	done := runWatch(t, c, "--count", "1", "--timeout", "10s")

	out := untilDone(t, done, func() {
		c.MustRun("import", "w.csv", "--name", "Sky#1")
	})

	cli.AssertContains(t, out, "packages-changed op=add from=ctx-")
	cli.AssertContains(t, out, "Sky#1 not started")
}

func TestWatch_PrintsSettingsChanges(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	done := runWatch(t, c, "--count", "1", "--timeout", "10s")

	out := untilDone(t, done, func() {
		c.MustRun("settings", "--language", "zh-CN")
	})

	cli.AssertContains(t, out, "settings-changed language=zh-CN")
}

func TestWatch_TimeoutExitsCleanly(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	select {
	case out := <-runWatch(t, c, "--timeout", "50ms"):
		if out != "" {
			t.Fatalf("stdout=%q, want empty", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch ignored --timeout")
	}
}

func TestWatch_RejectsNegativeCount(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	cli.AssertContains(t, c.MustFail("watch", "--count", "-1"), "--count must be non-negative")
}
