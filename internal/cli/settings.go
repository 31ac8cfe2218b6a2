package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wordbank/internal/settings"
)

// SettingsCmd returns the settings command.
func SettingsCmd(s *session) *Command {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.String("language", "", "Set the UI language (zh-CN, zh-TW, en-US, en-GB)")

	return &Command{
		Flags: fs,
		Usage: "settings [--language <tag>]",
		Short: "Show or change user settings",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			a, err := s.open(ctx)
			if err != nil {
				return err
			}

			if fs.Changed("language") {
				raw, _ := fs.GetString("language")

				lang, err := settings.ParseLanguage(raw)
				if err != nil {
					return err
				}

				if _, err := a.Settings.SetLanguage(ctx, lang); err != nil {
					return err
				}
			}

			cur, err := a.Settings.Load()
			if err != nil {
				return err
			}

			o.Println("language=" + string(cur.Language))

			return nil
		},
	}
}
