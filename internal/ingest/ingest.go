// Package ingest turns raw source material into a new vocabulary package:
// a catalog record plus its shuffled word bank.
package ingest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/calvinalkan/wordbank/internal/pack"
)

// DefaultSeparator splits the two fields of a delimited line.
const DefaultSeparator = ","

// Error variables for package construction.
var (
	ErrNoEntries    = errors.New("no entries found")
	ErrNameRequired = errors.New("package name is required")
	ErrNameFormat   = errors.New("package name must look like bundle" + pack.NameDelimiter + "sub")
)

// Builder creates packages. The zero value is ready to use and draws from
// the process-wide random source.
type Builder struct {
	// Rand drives the shuffle. Nil uses the top-level math/rand/v2 functions.
	Rand *rand.Rand

	// NewID generates package uuids. Nil uses [uuid.NewString].
	NewID func() string
}

// FromDelimitedText builds a package from lines of "english<sep>chinese".
// Blank lines are skipped, fields past the second are ignored and a line
// without a separator yields an empty chinese field.
func FromDelimitedText(name, description, text, sep string) (pack.PackageRecord, []pack.WordBankEntry, error) {
	var b Builder

	return b.FromDelimitedText(name, description, text, sep)
}

// FromPairedRows builds a package from (english, chinese) rows.
func FromPairedRows(name, description string, rows [][2]string) (pack.PackageRecord, []pack.WordBankEntry, error) {
	var b Builder

	return b.FromPairedRows(name, description, rows)
}

// FromDelimitedText is the Builder form of the package-level function.
func (b *Builder) FromDelimitedText(name, description, text, sep string) (pack.PackageRecord, []pack.WordBankEntry, error) {
	if sep == "" {
		sep = DefaultSeparator
	}

	rows := ParseDelimited(text, sep)

	return b.FromPairedRows(name, description, rows)
}

// FromPairedRows is the Builder form of the package-level function.
func (b *Builder) FromPairedRows(name, description string, rows [][2]string) (pack.PackageRecord, []pack.WordBankEntry, error) {
	name = strings.TrimSpace(name)

	if err := validateName(name); err != nil {
		return pack.PackageRecord{}, nil, err
	}

	entries := make([]pack.WordBankEntry, 0, len(rows))

	for _, row := range rows {
		entries = append(entries, pack.WordBankEntry{
			English: strings.TrimSpace(row[0]),
			Chinese: strings.TrimSpace(row[1]),
		})
	}

	if len(entries) == 0 {
		return pack.PackageRecord{}, nil, ErrNoEntries
	}

	b.shuffle(entries)

	newID := b.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	rec := pack.PackageRecord{
		UUID:        newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Current:     pack.NotStarted,
		Total:       len(entries),
	}

	return rec, entries, nil
}

// ParseDelimited splits text into rows of at most two trimmed fields.
func ParseDelimited(text, sep string) [][2]string {
	var rows [][2]string

	for line := range strings.SplitSeq(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.SplitN(line, sep, 3)

		var row [2]string

		row[0] = strings.TrimSpace(fields[0])

		if len(fields) > 1 {
			row[1] = strings.TrimSpace(fields[1])
		}

		rows = append(rows, row)
	}

	return rows
}

// shuffle is Fisher-Yates: for i from the last index down to 1, swap with a
// uniform index in [0, i].
func (b *Builder) shuffle(entries []pack.WordBankEntry) {
	intN := rand.IntN
	if b.Rand != nil {
		intN = b.Rand.IntN
	}

	for i := len(entries) - 1; i > 0; i-- {
		j := intN(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}

func validateName(name string) error {
	if name == "" {
		return ErrNameRequired
	}

	if !strings.Contains(name, pack.NameDelimiter) {
		return fmt.Errorf("%w: %q", ErrNameFormat, name)
	}

	return nil
}
