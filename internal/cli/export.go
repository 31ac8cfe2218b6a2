package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/wordbank/internal/pack"
)

// ExportCmd returns the export command.
func ExportCmd(s *session) *Command {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.String("format", "csv", "Output format: csv, json, yaml")
	flags.StringP("output", "o", "", "Write to `file` instead of stdout")

	return &Command{
		Flags: flags,
		Usage: "export <ref> [flags]",
		Short: "Write a word bank in its stored order",
		Long: `Write the word bank of a package in its stored (shuffled) order.

The csv output can be imported again with "wb import".`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execExport(ctx, o, s, flags, args)
		},
	}
}

func execExport(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	ref, err := singleRef(args)
	if err != nil {
		return err
	}

	format, _ := flags.GetString("format")
	output, _ := flags.GetString("output")

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	p, err := a.Packages.Resolve(ref)
	if err != nil {
		return err
	}

	entries, err := a.Packages.WordBank(p.UUID)
	if err != nil {
		return err
	}

	data, err := encodeEntries(entries, format)
	if err != nil {
		return err
	}

	if output == "" {
		o.Printf("%s", data)

		return nil
	}

	path := output
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.EffectiveCwd, path)
	}

	if err := s.files.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	o.Println("Exported", len(entries), "entries to", output)

	return nil
}

func encodeEntries(entries []pack.WordBankEntry, format string) ([]byte, error) {
	switch format {
	case "csv":
		var b strings.Builder

		for _, e := range entries {
			b.WriteString(e.English)
			b.WriteString(",")
			b.WriteString(e.Chinese)
			b.WriteString("\n")
		}

		return []byte(b.String()), nil
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, err
		}

		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(entries)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownFormat, format)
	}
}
