package cli

import (
	"context"
	"errors"
	"maps"
	"slices"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wordbank/internal/pack"
)

// LsCmd returns the ls command.
func LsCmd(s *session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.String("bundle", "", "Only show packages of this bundle")
	fs.Bool("started", false, "Only show started packages")
	fs.Bool("index", false, "Group by bundle and sub (later duplicates win)")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List packages",
		Long:  "List packages in catalog order with their progress.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			return execLs(ctx, o, s, fs)
		},
	}
}

var errIndexFilter = errors.New("--index cannot be combined with --started")

func execLs(ctx context.Context, o *IO, s *session, fs *flag.FlagSet) error {
	bundle, _ := fs.GetString("bundle")
	startedOnly, _ := fs.GetBool("started")
	byIndex, _ := fs.GetBool("index")

	if byIndex && startedOnly {
		return errIndexFilter
	}

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	if byIndex {
		printIndex(o, a.Packages.Index(), bundle)

		return nil
	}

	for _, p := range a.Packages.Packages() {
		if bundle != "" && p.Bundle() != bundle {
			continue
		}

		if startedOnly && !p.Started() {
			continue
		}

		o.Println(formatPackageLine(p))
	}

	return nil
}

func printIndex(o *IO, idx pack.Index, only string) {
	for _, bundle := range slices.Sorted(maps.Keys(idx)) {
		if only != "" && bundle != only {
			continue
		}

		o.Println(bundle)

		subs := idx[bundle]
		for _, sub := range slices.Sorted(maps.Keys(subs)) {
			p := subs[sub]
			o.Printf("  %-12s %s  %s\n", sub, shortID(p.UUID), progress(p))
		}
	}
}
