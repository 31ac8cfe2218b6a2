// Package settings stores user preferences in the data directory and tells
// other contexts when they change.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/calvinalkan/wordbank/internal/docstore"
	"github.com/calvinalkan/wordbank/internal/logger"
)

// DocName is the settings document inside the data directory.
const DocName = "settings.json"

// EventChanged is announced after settings are saved.
const EventChanged = "settings-changed"

// Language is a UI locale tag.
type Language string

// Supported languages.
const (
	ZhCN Language = "zh-CN"
	ZhTW Language = "zh-TW"
	EnUS Language = "en-US"
	EnGB Language = "en-GB"
)

// DefaultLanguage is used when nothing valid is stored.
const DefaultLanguage = EnGB

// ErrUnknownLanguage is returned for a language outside [Languages].
var ErrUnknownLanguage = errors.New("unknown language")

// Languages lists the supported languages.
func Languages() []Language {
	return []Language{ZhCN, ZhTW, EnUS, EnGB}
}

// ParseLanguage matches s against the supported tags, ignoring case and
// accepting "_" for "-".
func ParseLanguage(s string) (Language, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), "_", "-")

	for _, l := range Languages() {
		if strings.EqualFold(norm, string(l)) {
			return l, nil
		}
	}

	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownLanguage, s, joinLanguages())
}

func joinLanguages() string {
	tags := make([]string, 0, len(Languages()))
	for _, l := range Languages() {
		tags = append(tags, string(l))
	}

	return strings.Join(tags, ", ")
}

// Settings is the persisted preferences document.
type Settings struct {
	Language Language `json:"language"`
}

// Default returns the settings written when none exist.
func Default() Settings {
	return Settings{Language: DefaultLanguage}
}

func (s Settings) valid() bool {
	return slices.Contains(Languages(), s.Language)
}

// Announcer broadcasts a change to other contexts.
type Announcer interface {
	AnnounceToAll(ctx context.Context, event string, payload any) error
}

// Service reads and writes settings.
type Service struct {
	store     *docstore.Store
	announcer Announcer
	log       *logger.Logger
}

// New returns a settings service. announcer and log may be nil.
func New(store *docstore.Store, announcer Announcer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}

	return &Service{store: store, announcer: announcer, log: log.With("component", "settings")}
}

// Load returns the stored settings. A missing, unreadable or invalid
// document is replaced with [Default], which is then returned.
func (s *Service) Load() (Settings, error) {
	cur, err := docstore.Load[Settings](s.store, DocName)
	if err == nil && cur.valid() {
		return cur, nil
	}

	if err != nil && !errors.Is(err, docstore.ErrNotFound) && !errors.Is(err, docstore.ErrParse) {
		return Settings{}, err
	}

	if err == nil {
		s.log.Warn("stored settings invalid, writing defaults", "language", cur.Language)
	}

	def := Default()

	if err := docstore.Save(s.store, DocName, def); err != nil {
		return Settings{}, fmt.Errorf("writing default settings: %w", err)
	}

	return def, nil
}

// SetLanguage persists lang and announces [EventChanged].
func (s *Service) SetLanguage(ctx context.Context, lang Language) (Settings, error) {
	next := Settings{Language: lang}
	if !next.valid() {
		return Settings{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}

	if err := docstore.Save(s.store, DocName, next); err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}

	s.log.Info("language changed", "language", lang)

	if s.announcer != nil {
		if err := s.announcer.AnnounceToAll(ctx, EventChanged, next); err != nil {
			s.log.Warn("announce failed", "event", EventChanged, "error", err)
		}
	}

	return next, nil
}
