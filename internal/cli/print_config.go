package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execPrintConfig(o, s)

			return nil
		},
	}
}

func execPrintConfig(o *IO, s *session) {
	cfg := s.cfg

	o.Println("effective_cwd=" + cfg.EffectiveCwd)
	o.Println("data_dir=" + cfg.DataDirAbs)

	if cfg.Context != "" {
		o.Println("context=" + cfg.Context)
	}

	o.Println("bridge=" + cfg.Bridge)

	if cfg.RedisAddr != "" {
		o.Println("redis_addr=" + cfg.RedisAddr)
		o.Println("redis_prefix=" + cfg.RedisPrefix)
	}

	o.Println("lock_timeout=" + time.Duration(cfg.LockTimeout).String())
	o.Println("poll_interval=" + time.Duration(cfg.PollInterval).String())
	o.Println("max_journal_bytes=" + strconv.FormatInt(cfg.MaxJournalBytes, 10))
	o.Println("log_level=" + cfg.LogLevel)
	o.Println("log_mode=" + cfg.LogMode)

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" && len(cfg.Sources.Env) == 0 {
		o.Println("(defaults only)")

		return
	}

	if cfg.Sources.Global != "" {
		o.Println("global_config=" + cfg.Sources.Global)
	}

	if cfg.Sources.Project != "" {
		o.Println("project_config=" + cfg.Sources.Project)
	}

	if len(cfg.Sources.Env) > 0 {
		o.Println("env=" + strings.Join(cfg.Sources.Env, ","))
	}
}
