package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// StartCmd returns the start command.
func StartCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("start", flag.ContinueOnError),
		Usage: "start <ref>",
		Short: "Place the cursor on the first entry",
		Long:  "Start a package. Starting an already started package changes nothing.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execStart(ctx, o, s, args)
		},
	}
}

func execStart(ctx context.Context, o *IO, s *session, args []string) error {
	ref, err := singleRef(args)
	if err != nil {
		return err
	}

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	p, err := a.Packages.Resolve(ref)
	if err != nil {
		return err
	}

	updated, changed, err := a.Packages.Start(ctx, p.UUID)
	if err != nil {
		return err
	}

	switch {
	case changed:
		o.Println("Started", updated.Name)
	case updated.Total == 0:
		o.Warn("%s has no entries", updated.Name)
	default:
		o.Println("Already started", updated.Name, progress(updated))
	}

	return nil
}

// NextCmd returns the next command.
func NextCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("next", flag.ContinueOnError),
		Usage: "next <ref>",
		Short: "Advance the cursor by one entry",
		Long: `Advance a started package by one entry and print the new entry.

Nothing changes when the package is not started or already on its last
entry.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execNext(ctx, o, s, args)
		},
	}
}

func execNext(ctx context.Context, o *IO, s *session, args []string) error {
	ref, err := singleRef(args)
	if err != nil {
		return err
	}

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	p, err := a.Packages.Resolve(ref)
	if err != nil {
		return err
	}

	updated, changed, err := a.Packages.AdvanceProgress(ctx, p.UUID)
	if err != nil {
		return err
	}

	if !changed {
		if !updated.Started() {
			o.Warn("%s is not started (run: wb start %s)", updated.Name, shortID(updated.UUID))
		} else {
			o.Println(updated.Name, progress(updated), "(last entry)")
		}

		return nil
	}

	entries, err := a.Packages.WordBank(updated.UUID)
	if err != nil {
		return err
	}

	line := updated.Name + " " + progress(updated)
	if updated.Current < len(entries) {
		line += ": " + formatEntry(entries[updated.Current])
	}

	o.Println(line)

	return nil
}
