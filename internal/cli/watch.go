package cli

import (
	"context"
	"errors"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/wordbank/internal/bridge"
	"github.com/calvinalkan/wordbank/internal/pack"
	"github.com/calvinalkan/wordbank/internal/settings"
)

var errNegativeCount = errors.New("--count must be non-negative")

// WatchCmd returns the watch command.
func WatchCmd(s *session) *Command {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.Int("count", 0, "Exit after N announcements (0 = until interrupted)")
	fs.Duration("timeout", 0, "Exit after this long (0 = no limit)")

	return &Command{
		Flags: fs,
		Usage: "watch [flags]",
		Short: "Print changes announced by other sessions",
		Long: `Print every change other wb sessions announce on this data directory:
one line per announcement with the event, the sending context and, for
package changes, the package after the change.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			return execWatch(ctx, o, s, fs)
		},
	}
}

func execWatch(ctx context.Context, o *IO, s *session, fs *flag.FlagSet) error {
	count, _ := fs.GetInt("count")
	if count < 0 {
		return errNegativeCount
	}

	timeout, _ := fs.GetDuration("timeout")
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	a, err := s.open(ctx)
	if err != nil {
		return err
	}

	events := make(chan bridge.Message, 64)

	forward := func(ctx context.Context, msg bridge.Message) {
		select {
		case events <- msg:
		case <-ctx.Done():
		}
	}

	unsubPackages := a.Bridge.Subscribe(pack.EventPackagesChanged, forward)
	defer unsubPackages()

	unsubSettings := a.Bridge.Subscribe(settings.EventChanged, forward)
	defer unsubSettings()

	err = a.Run(ctx, func(ctx context.Context) error {
		seen := 0

		for count == 0 || seen < count {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-events:
				seen++

				printEvent(o, a.Packages, msg)
			}
		}

		return nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	return err
}

func printEvent(o *IO, repo *pack.Repository, msg bridge.Message) {
	ts := msg.Time.Local().Format(time.TimeOnly)

	switch msg.Event {
	case pack.EventPackagesChanged:
		change, _ := bridge.Decode[pack.ChangePayload](msg)

		line := ts + " " + msg.Event + " op=" + change.Op + " from=" + msg.Source

		// The app's own subscription refreshed the cache before this runs.
		if p, ok := repo.Get(change.UUID); ok {
			line += " " + p.Name + " " + progress(p)
		} else if change.UUID != "" {
			line += " " + shortID(change.UUID)
		}

		o.Println(line)
	case settings.EventChanged:
		next, _ := bridge.Decode[settings.Settings](msg)
		o.Println(ts, msg.Event, "language="+string(next.Language), "from="+msg.Source)
	default:
		o.Println(ts, msg.Event, "from="+msg.Source)
	}
}
