package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/wordbank/internal/ingest"
	"github.com/calvinalkan/wordbank/internal/pack"
)

// Import formats.
const (
	formatAuto = "auto"
	formatText = "text"
	formatRows = "rows"
)

var (
	errFileRequired  = errors.New("source file is required (use - for stdin)")
	errUnknownFormat = errors.New("unknown format")
	errBadRow        = errors.New("row must be [english, chinese] or {english, chinese}")
)

// ImportCmd returns the import command.
func ImportCmd(s *session) *Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.StringP("name", "n", "", "Package name as bundle#sub (required)")
	fs.StringP("description", "d", "", "Package description")
	fs.String("sep", "", "Field separator for text input (default \",\", tab for .tsv)")
	fs.String("format", formatAuto, "Input format: auto, text, rows (YAML or JSON list of pairs)")

	return &Command{
		Flags: fs,
		Usage: "import <file|-> --name <bundle#sub>",
		Short: "Create a package from a word list",
		Long: `Create a package from a word list and print its uuid.

Text input has one "english,chinese" pair per line; blank lines are skipped
and fields after the second are ignored. Rows input is a YAML or JSON list
whose items are either [english, chinese] or {english: .., chinese: ..}.
The entries are shuffled once when the package is created.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execImport(ctx, o, s, fs, args)
		},
	}
}

func execImport(ctx context.Context, o *IO, s *session, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	if len(args) > 1 {
		return fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(args[1:], " "))
	}

	name, _ := fs.GetString("name")
	if strings.TrimSpace(name) == "" {
		return errNameRequired
	}

	description, _ := fs.GetString("description")
	sep, _ := fs.GetString("sep")
	format, _ := fs.GetString("format")

	src := args[0]
	ext := strings.ToLower(filepath.Ext(src))

	if format == formatAuto {
		switch ext {
		case ".yaml", ".yml", ".json":
			format = formatRows
		default:
			format = formatText
		}
	}

	if sep == "" && ext == ".tsv" {
		sep = "\t"
	}

	data, err := readSource(o, s, src)
	if err != nil {
		return err
	}

	var (
		rec     pack.PackageRecord
		entries []pack.WordBankEntry
	)

	switch format {
	case formatText:
		rec, entries, err = ingest.FromDelimitedText(name, description, string(data), sep)
	case formatRows:
		var rows [][2]string

		rows, err = decodeRows(data)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}

		rec, entries, err = ingest.FromPairedRows(name, description, rows)
	default:
		return fmt.Errorf("%w: %s", errUnknownFormat, format)
	}

	if err != nil {
		return err
	}

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	if err := a.Packages.AddPackage(ctx, rec, entries); err != nil {
		return err
	}

	o.Println(rec.UUID)

	return nil
}

func readSource(o *IO, s *session, src string) ([]byte, error) {
	if src == "-" {
		if o.in == nil {
			return nil, errors.New("no stdin available")
		}

		data, err := io.ReadAll(o.in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.EffectiveCwd, path)
	}

	data, err := s.files.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}

	return data, nil
}

// decodeRows accepts a YAML (or JSON) list of pairs or english/chinese maps.
func decodeRows(data []byte) ([][2]string, error) {
	var items []yaml.Node

	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	rows := make([][2]string, 0, len(items))

	for i, item := range items {
		var row [2]string

		switch item.Kind {
		case yaml.SequenceNode:
			var pair []string
			if err := item.Decode(&pair); err != nil || len(pair) == 0 {
				return nil, fmt.Errorf("item %d: %w", i, errBadRow)
			}

			row[0] = pair[0]
			if len(pair) > 1 {
				row[1] = pair[1]
			}
		case yaml.MappingNode:
			var entry pack.WordBankEntry
			if err := item.Decode(&entry); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, errBadRow)
			}

			row = [2]string{entry.English, entry.Chinese}
		default:
			return nil, fmt.Errorf("item %d: %w", i, errBadRow)
		}

		rows = append(rows, row)
	}

	return rows, nil
}
