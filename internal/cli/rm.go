package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <ref>",
		Short: "Delete a package and its word bank",
		Exec: func(ctx context.Context, o *IO, args []string) error {
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

			if err := a.Packages.Remove(ctx, p.UUID); err != nil {
				return err
			}

			o.Println("Removed", p.Name)

			return nil
		},
	}
}
