package cli

import (
	"fmt"
	"strings"

	"github.com/calvinalkan/wordbank/internal/pack"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}

	return id[:shortIDLen]
}

// progress renders the cursor as a 1-based position.
func progress(p pack.PackageRecord) string {
	switch {
	case !p.Started():
		return "not started"
	case p.Total == 0:
		return "empty"
	default:
		return fmt.Sprintf("%d/%d", p.Current+1, p.Total)
	}
}

func formatPackageLine(p pack.PackageRecord) string {
	line := fmt.Sprintf("%s  %-24s %-12s", shortID(p.UUID), p.Name, progress(p))
	if p.Description != "" {
		line += " " + p.Description
	}

	return strings.TrimRight(line, " ")
}

func formatEntry(e pack.WordBankEntry) string {
	return e.English + " = " + e.Chinese
}
