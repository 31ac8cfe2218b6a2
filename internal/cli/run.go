// Package cli implements the wb command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wordbank/internal/app"
	"github.com/calvinalkan/wordbank/internal/config"
	"github.com/calvinalkan/wordbank/internal/fs"
	"github.com/calvinalkan/wordbank/internal/logger"
)

var (
	errRefRequired  = errors.New("package reference is required (uuid, uuid prefix or bundle#sub)")
	errTooManyArgs  = errors.New("too many arguments")
	errUnknownCmd   = errors.New("unknown command")
	errNameRequired = errors.New("--name is required")
)

// Run is the main entry point. Returns exit code.
//
// A value on sigCh cancels the running command; long-running commands
// (watch, learn) return cleanly when that happens.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(in, out, errOut)

	globals := flag.NewFlagSet("wb", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	dataDir := globals.String("data-dir", "", "Override the data `dir`")
	contextID := globals.String("context", "", "Name this context on the change bridge")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	if err := globals.Parse(args); err != nil {
		o.ErrPrintln("error:", err)
		printUsage(o, globals, commandList(nil))

		return 1
	}

	rest := globals.Args()

	if *help || len(rest) == 0 {
		printUsage(o, globals, commandList(nil))

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		DataDirOverride: *dataDir,
		ContextOverride: *contextID,
		Env:             env,
	})
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	s := &session{cfg: cfg, log: log, files: fs.NewReal()}
	defer s.close()

	commands := commandList(s)

	name := rest[0]

	cmd, ok := commands[name]
	if !ok {
		o.ErrPrintln("error:", fmt.Errorf("%w: %s", errUnknownCmd, name))
		printUsage(o, globals, commands)

		return 1
	}

	code := cmd.Run(ctx, o, rest[1:])
	if code != 0 {
		return code
	}

	o.Finish()

	return 0
}

// session opens the context's App on first use so commands that only read
// configuration never touch the data directory.
type session struct {
	cfg   config.Config
	log   *logger.Logger
	files fs.FS
	app   *app.App
}

func (s *session) open(ctx context.Context) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}

	a, err := app.Open(ctx, s.cfg, s.log)
	if err != nil {
		return nil, err
	}

	s.app = a

	return a, nil
}

func (s *session) close() {
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			s.log.Warn("close failed", "error", err)
		}
	}
}

// commandOrder is the order of the help listing.
var commandOrder = []string{
	"import", "ls", "show", "start", "next", "learn", "rm", "export", "watch", "settings", "print-config",
}

func commandList(s *session) map[string]*Command {
	return map[string]*Command{
		"import":       ImportCmd(s),
		"ls":           LsCmd(s),
		"show":         ShowCmd(s),
		"start":        StartCmd(s),
		"next":         NextCmd(s),
		"learn":        LearnCmd(s),
		"rm":           RmCmd(s),
		"export":       ExportCmd(s),
		"watch":        WatchCmd(s),
		"settings":     SettingsCmd(s),
		"print-config": PrintConfigCmd(s),
	}
}

func printUsage(o *IO, globals *flag.FlagSet, commands map[string]*Command) {
	o.Println("wb - vocabulary packages with progress shared across sessions")
	o.Println()
	o.Println("Usage: wb [options] <command> [args]")
	o.Println()
	o.Println("Options:")

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})
	o.Printf("%s", buf.String())

	o.Println()
	o.Println("Commands:")

	for _, name := range commandOrder {
		o.Println(commands[name].HelpLine())
	}
}

// singleRef returns the one positional package reference.
func singleRef(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", errRefRequired
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(args[1:], " "))
	}
}
