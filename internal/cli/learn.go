package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wordbank/internal/app"
	"github.com/calvinalkan/wordbank/internal/pack"
)

var errNoInput = errors.New("learn needs an input stream")

// LearnCmd returns the learn command.
func LearnCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("learn", flag.ContinueOnError),
		Usage: "learn <ref>",
		Short: "Step through a package interactively",
		Long: `Step through a package one entry at a time, starting it if needed.

Press enter to reveal the translation, enter again to move on, "q" to quit.
Progress is saved after every entry, and changes made from other sessions
show up immediately.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execLearn(ctx, o, s, args)
		},
	}
}

// prompter reads one line of user input.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linePrompter drives a terminal with line editing.
type linePrompter struct {
	state *liner.State
}

func newLinePrompter() *linePrompter {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	return &linePrompter{state: state}
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	return line, err
}

func (p *linePrompter) Close() error {
	return p.state.Close()
}

// scanPrompter reads lines from a plain stream (pipes, tests).
type scanPrompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

func (p *scanPrompter) Prompt(prompt string) (string, error) {
	_, _ = io.WriteString(p.out, prompt)

	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return p.scanner.Text(), nil
}

func (*scanPrompter) Close() error { return nil }

func newPrompter(o *IO) (prompter, error) {
	if f, ok := o.in.(*os.File); ok && f == os.Stdin && isTerminal(f) && liner.TerminalSupported() {
		return newLinePrompter(), nil
	}

	if o.in == nil {
		return nil, errNoInput
	}

	return &scanPrompter{out: o.out, scanner: bufio.NewScanner(o.in)}, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()

	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func execLearn(ctx context.Context, o *IO, s *session, args []string) error {
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

	if p.Total == 0 {
		o.Warn("%s has no entries", p.Name)

		return nil
	}

	if !p.Started() {
		if p, _, err = a.Packages.Start(ctx, p.UUID); err != nil {
			return err
		}

		o.Println("Started", p.Name)
	}

	entries, err := a.Packages.WordBank(p.UUID)
	if err != nil {
		return err
	}

	in, err := newPrompter(o)
	if err != nil {
		return err
	}

	defer func() { _ = in.Close() }()

	return a.Run(ctx, func(ctx context.Context) error {
		return learnLoop(ctx, o, a, in, p.UUID, entries)
	})
}

func learnLoop(ctx context.Context, o *IO, a *app.App, in prompter, id string, entries []pack.WordBankEntry) error {
	for ctx.Err() == nil {
		// Re-read every round: a peer may have advanced or removed the package.
		p, ok := a.Packages.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s was removed", pack.ErrPackageNotFound, shortID(id))
		}

		if p.Current < 0 || p.Current >= len(entries) {
			return fmt.Errorf("%w: cursor %d outside word bank of %d", pack.ErrInvalidRecord, p.Current, len(entries))
		}

		e := entries[p.Current]

		answer, err := in.Prompt(fmt.Sprintf("[%s] %s ", progress(p), e.English))
		if err != nil {
			return stopOnEOF(err)
		}

		if quit(answer) {
			return nil
		}

		answer, err = in.Prompt("  " + e.Chinese + " ")
		if err != nil {
			return stopOnEOF(err)
		}

		if quit(answer) {
			return nil
		}

		_, changed, err := a.Packages.AdvanceProgress(ctx, id)
		if err != nil {
			return err
		}

		if !changed {
			o.Println("Finished", p.Name)

			return nil
		}
	}

	return nil
}

func quit(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "q", "quit", "exit":
		return true
	}

	return false
}

func stopOnEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}
