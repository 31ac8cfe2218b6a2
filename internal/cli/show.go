package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/wordbank/internal/pack"
)

// ShowCmd returns the show command.
func ShowCmd(s *session) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.Bool("yaml", false, "Print as YAML")
	fs.Bool("no-entries", false, "Omit the word bank")

	return &Command{
		Flags: fs,
		Usage: "show <ref> [flags]",
		Short: "Show a package and its word bank",
		Long: `Show a package and its word bank. The current entry is marked with ">".

<ref> is a uuid, a unique uuid prefix, or bundle#sub.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execShow(ctx, o, s, fs, args)
		},
	}
}

type showView struct {
	UUID        string               `yaml:"uuid"`
	Name        string               `yaml:"name"`
	Bundle      string               `yaml:"bundle"`
	Sub         string               `yaml:"sub"`
	Description string               `yaml:"description,omitempty"`
	Current     int                  `yaml:"current"`
	Total       int                  `yaml:"total"`
	Entries     []pack.WordBankEntry `yaml:"entries,omitempty"`
}

func execShow(ctx context.Context, o *IO, s *session, fs *flag.FlagSet, args []string) error {
	ref, err := singleRef(args)
	if err != nil {
		return err
	}

	asYAML, _ := fs.GetBool("yaml")
	noEntries, _ := fs.GetBool("no-entries")

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	p, err := a.Packages.Resolve(ref)
	if err != nil {
		return err
	}

	var entries []pack.WordBankEntry

	if !noEntries {
		entries, err = a.Packages.WordBank(p.UUID)
		if err != nil {
			return fmt.Errorf("word bank of %s: %w", p.Name, err)
		}
	}

	if asYAML {
		out, err := yaml.Marshal(showView{
			UUID:        p.UUID,
			Name:        p.Name,
			Bundle:      p.Bundle(),
			Sub:         p.Sub(),
			Description: p.Description,
			Current:     p.Current,
			Total:       p.Total,
			Entries:     entries,
		})
		if err != nil {
			return err
		}

		o.Printf("%s", out)

		return nil
	}

	o.Println("uuid:", p.UUID)
	o.Println("name:", p.Name)

	if p.Description != "" {
		o.Println("description:", p.Description)
	}

	o.Println("progress:", progress(p))

	if len(entries) == 0 {
		return nil
	}

	o.Println()

	for i, e := range entries {
		marker := " "
		if p.Started() && i == p.Current {
			marker = ">"
		}

		o.Printf("%s %3d  %s\n", marker, i+1, formatEntry(e))
	}

	return nil
}
