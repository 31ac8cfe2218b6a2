package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/wordbank/internal/cli"
	"github.com/calvinalkan/wordbank/internal/pack"
)

func importWords(t *testing.T, c *cli.CLI, name string, lines ...string) string {
	t.Helper()

	file := strings.ReplaceAll(name, "#", "_") + ".csv"
	c.WriteFile(file, strings.Join(lines, "\n")+"\n")

	return c.MustRun("import", file, "--name", name)
}

func currentOf(t *testing.T, c *cli.CLI, id string) int {
	t.Helper()

	for _, p := range c.Catalog().Packages {
		if p.UUID == id {
			return p.Current
		}
	}

	t.Fatalf("package %s not in catalog", id)

	return 0
}

func TestNext_WalksToLastEntryAndStops(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	id := importWords(t, c, "Fruit#1", "apple,苹果", "pear,梨", "plum,李子")

	if got, want := c.MustRun("start", "Fruit#1"), "Started Fruit#1"; got != want {
		t.Fatalf("start=%q, want=%q", got, want)
	}

	cli.AssertContains(t, c.MustRun("next", "Fruit#1"), "Fruit#1 2/3: ")
	cli.AssertContains(t, c.MustRun("next", id), "Fruit#1 3/3: ")

	if got, want := c.MustRun("next", id[:8]), "Fruit#1 3/3 (last entry)"; got != want {
		t.Fatalf("next at end=%q, want=%q", got, want)
	}

	if got, want := currentOf(t, c, id), 2; got != want {
		t.Fatalf("current=%d, want=%d", got, want)
	}
}

func TestNext_NotStartedWarnsAndChangesNothing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	id := importWords(t, c, "Fruit#1", "apple,苹果", "pear,梨")

	stdout, stderr, code := c.Run("next", "Fruit#1")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr=%s", code, stderr)
	}

	if stdout != "" {
		t.Fatalf("stdout=%q, want empty", stdout)
	}

	cli.AssertContains(t, stderr, "warning: Fruit#1 is not started (run: wb start "+id[:8]+")")

	if got, want := currentOf(t, c, id), pack.NotStarted; got != want {
		t.Fatalf("current=%d, want=%d", got, want)
	}
}

func TestStart_TwiceKeepsPosition(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	id := importWords(t, c, "Fruit#1", "apple,苹果", "pear,梨")

	c.MustRun("start", id)
	c.MustRun("next", id)

	if got, want := c.MustRun("start", id), "Already started Fruit#1 2/2"; got != want {
		t.Fatalf("start=%q, want=%q", got, want)
	}

	if got, want := currentOf(t, c, id), 1; got != want {
		t.Fatalf("current=%d, want=%d", got, want)
	}
}

func TestLs_Filters(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	fruit := importWords(t, c, "Fruit#1", "apple,苹果")
	importWords(t, c, "Fruit#2", "pear,梨")
	importWords(t, c, "Colour#1", "red,红")

	c.MustRun("start", fruit)

	all := c.MustRun("ls")
	if got, want := len(strings.Split(all, "\n")), 3; got != want {
		t.Fatalf("ls printed %d lines, want %d:\n%s", got, want, all)
	}

	cli.AssertContains(t, all, fruit[:8]+"  Fruit#1")
	cli.AssertContains(t, all, "not started")

	bundle := c.MustRun("ls", "--bundle", "Fruit")
	cli.AssertContains(t, bundle, "Fruit#2")
	cli.AssertNotContains(t, bundle, "Colour#1")

	started := c.MustRun("ls", "--started")
	cli.AssertContains(t, started, "Fruit#1")
	cli.AssertContains(t, started, "1/1")
	cli.AssertNotContains(t, started, "Fruit#2")

	cli.AssertContains(t, c.MustFail("ls", "--index", "--started"), "--index cannot be combined")
}

func TestLs_IndexLaterDuplicateWins(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	importWords(t, c, "Fruit#1", "apple,苹果")
	second := importWords(t, c, "Fruit#1", "pear,梨")
	importWords(t, c, "Colour#warm", "red,红")

	out := c.MustRun("ls", "--index")
	lines := strings.Split(out, "\n")

	if got, want := len(lines), 4; got != want {
		t.Fatalf("index printed %d lines, want %d:\n%s", got, want, out)
	}

	if lines[0] != "Colour" || lines[2] != "Fruit" {
		t.Fatalf("bundles not sorted:\n%s", out)
	}

	cli.AssertContains(t, lines[3], second[:8])

	// A reference by name follows the index.
	cli.AssertContains(t, c.MustRun("show", "Fruit#1"), "uuid: "+second)
}

func TestShow_MarksCurrentEntry(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	id := importWords(t, c, "Solo#1", "moon,月亮")

	before := c.MustRun("show", id)
	cli.AssertContains(t, before, "progress: not started")
	cli.AssertContains(t, before, "    1  moon = 月亮")

	c.MustRun("start", id)

	after := c.MustRun("show", id)
	cli.AssertContains(t, after, "progress: 1/1")
	cli.AssertContains(t, after, ">   1  moon = 月亮")

	cli.AssertNotContains(t, c.MustRun("show", id, "--no-entries"), "moon")
}

func TestShow_YAML(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("w.csv", "moon,月亮\n")
	id := c.MustRun("import", "w.csv", "--name", "Sky#night", "-d", "things above")

	out := c.MustRun("show", id, "--yaml")

	for _, want := range []string{
		"uuid: " + id,
		"bundle: Sky",
		"sub: night",
		"description: things above",
		"current: -1",
		"total: 1",
		"- english: moon",
	} {
		cli.AssertContains(t, out, want)
	}
}

func TestRm_RemovesFromCatalog(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	keep := importWords(t, c, "Keep#1", "a,1")
	drop := importWords(t, c, "Drop#1", "b,2")

	if got, want := c.MustRun("rm", drop), "Removed Drop#1"; got != want {
		t.Fatalf("rm=%q, want=%q", got, want)
	}

	ls := c.MustRun("ls")
	cli.AssertContains(t, ls, keep[:8])
	cli.AssertNotContains(t, ls, drop[:8])

	cli.AssertContains(t, c.MustFail("show", drop), "package not found")
}
