package cli_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/calvinalkan/wordbank/internal/cli"
	"github.com/calvinalkan/wordbank/internal/pack"
)

func TestImport_CSVFile(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("words.csv", "hello,你好\nworld,世界\n")

	id := c.MustRun("import", "words.csv", "--name", "Basics#1", "-d", "greetings")

	if err := uuid.Validate(id); err != nil {
		t.Fatalf("import printed %q, want a uuid: %v", id, err)
	}

	want := []pack.PackageRecord{{
		UUID: id, Name: "Basics#1", Description: "greetings", Current: pack.NotStarted, Total: 2,
	}}
	if diff := cmp.Diff(want, c.Catalog().Packages); diff != "" {
		t.Fatalf("catalog (-want +got):\n%s", diff)
	}

	exported := c.MustRun("export", id)
	lines := strings.Split(exported, "\n")

	if got, want := len(lines), 2; got != want {
		t.Fatalf("exported %d lines, want %d:\n%s", got, want, exported)
	}

	cli.AssertContains(t, exported, "hello,你好")
	cli.AssertContains(t, exported, "world,世界")
}

func TestImport_Stdin(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, code := c.RunWithInput("cat\t猫\ndog\t狗\n", "import", "-", "--name", "Animals#pets", "--sep", "\t")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr=%s", code, stderr)
	}

	id := strings.TrimSpace(stdout)

	show := c.MustRun("show", "Animals#pets")
	cli.AssertContains(t, show, "uuid: "+id)
	cli.AssertContains(t, show, "cat = 猫")
	cli.AssertContains(t, show, "dog = 狗")
}

func TestImport_TSVExtensionPicksTab(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("words.tsv", "red\t红\n")

	c.MustRun("import", "words.tsv", "--name", "Colours#1")

	cli.AssertContains(t, c.MustRun("export", "Colours#1"), "red,红")
}

func TestImport_RowsFromYAMLAndJSON(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("rows.yaml", "- [one, 一]\n- english: two\n  chinese: 二\n")
	c.WriteFile("rows.json", `[["three", "三"], {"english": "four", "chinese": "四"}]`)

	c.MustRun("import", "rows.yaml", "--name", "Numbers#a")
	c.MustRun("import", "rows.json", "--name", "Numbers#b")

	a := c.MustRun("export", "Numbers#a", "--format", "json")
	cli.AssertContains(t, a, `"english": "one"`)
	cli.AssertContains(t, a, `"chinese": "二"`)

	b := c.MustRun("export", "Numbers#b", "--format", "yaml")
	cli.AssertContains(t, b, "english: three")
	cli.AssertContains(t, b, "chinese: 四")
}

func TestImport_ExportRoundTripsThroughFile(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("words.csv", "a,1\nb,2\nc,3\n")

	c.MustRun("import", "words.csv", "--name", "Letters#1")
	c.MustRun("export", "Letters#1", "-o", "out.yaml", "--format", "yaml")
	c.MustRun("import", "out.yaml", "--name", "Letters#2")

	first := c.MustRun("export", "Letters#1")
	second := c.MustRun("export", "Letters#2")

	sortLines := func(s string) string {
		lines := strings.Split(s, "\n")
		slices.Sort(lines)

		return strings.Join(lines, "\n")
	}

	if got, want := sortLines(second), sortLines(first); got != want {
		t.Fatalf("re-imported entries differ:\n got: %q\nwant: %q", got, want)
	}

	if _, err := os.Stat(filepath.Join(c.Dir, "out.yaml")); err != nil {
		t.Fatalf("export file missing: %v", err)
	}
}

func TestImport_Errors(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name       string
		files      map[string]string
		args       []string
		wantStderr string
	}{
		{name: "no file", args: []string{"import", "--name", "A#1"}, wantStderr: "source file is required"},
		{name: "no name", files: map[string]string{"w.csv": "a,b"}, args: []string{"import", "w.csv"}, wantStderr: "--name is required"},
		{name: "name without delimiter", files: map[string]string{"w.csv": "a,b"}, args: []string{"import", "w.csv", "--name", "Plain"}, wantStderr: "bundle#sub"},
		{name: "empty file", files: map[string]string{"w.csv": "\n\n"}, args: []string{"import", "w.csv", "--name", "A#1"}, wantStderr: "no entries found"},
		{name: "missing file", args: []string{"import", "nope.csv", "--name", "A#1"}, wantStderr: "reading nope.csv"},
		{name: "bad row", files: map[string]string{"r.yaml": "- 5\n"}, args: []string{"import", "r.yaml", "--name", "A#1"}, wantStderr: "row must be"},
		{name: "bad format", files: map[string]string{"w.csv": "a,b"}, args: []string{"import", "w.csv", "--name", "A#1", "--format", "xlsx"}, wantStderr: "unknown format: xlsx"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			for name, content := range tt.files {
				c.WriteFile(name, content)
			}

			stderr := c.MustFail(tt.args...)
			cli.AssertContains(t, stderr, tt.wantStderr)
		})
	}
}
