// Package pack manages the vocabulary package catalog (data.json) and the
// per-package word bank documents.
package pack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// CurrentVersion is the schema version written to new data documents.
const CurrentVersion = 1

// NotStarted is the value of [PackageRecord.Current] before a package has
// been started.
const NotStarted = -1

// NameDelimiter separates bundle and sub in a package name.
const NameDelimiter = "#"

// Document names inside the data directory.
const (
	DataFile    = "data.json"
	BackupFile  = "data.json.bak"
	PackagesDir = "packages"
)

// PackageRecord is one entry of the package catalog.
type PackageRecord struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
}

// Started reports whether the progress cursor has been placed.
func (p PackageRecord) Started() bool {
	return p.Current != NotStarted
}

// Finished reports whether the cursor sits on the last entry.
func (p PackageRecord) Finished() bool {
	return p.Started() && p.Current >= p.Total-1
}

// Bundle returns the part of the name before the delimiter.
func (p PackageRecord) Bundle() string {
	bundle, _ := SplitName(p.Name)

	return bundle
}

// Sub returns the part of the name after the delimiter.
func (p PackageRecord) Sub() string {
	_, sub := SplitName(p.Name)

	return sub
}

// WordBankEntry is one translation pair.
type WordBankEntry struct {
	English string `json:"english"`
	Chinese string `json:"chinese"`
}

// SplitName cuts name at the first delimiter. A name without the delimiter
// is all bundle with an empty sub.
func SplitName(name string) (bundle, sub string) {
	bundle, sub, _ = strings.Cut(name, NameDelimiter)

	return bundle, sub
}

// JoinName builds a compound package name.
func JoinName(bundle, sub string) string {
	return bundle + NameDelimiter + sub
}

// WordBankName returns the document name holding the word bank of uuid.
func WordBankName(uuid string) string {
	return PackagesDir + "/" + uuid + ".json"
}

// RootDocument is the on-disk package catalog.
//
// Decoding validates the shape: the document must be an object whose
// "version" is an integer and whose "packages" is an array of package
// objects. Any mismatch yields an error wrapping [ErrSchemaInvalid].
type RootDocument struct {
	Version  int             `json:"version"`
	Packages []PackageRecord `json:"packages"`
}

// NewRootDocument returns an empty catalog at [CurrentVersion].
func NewRootDocument() RootDocument {
	return RootDocument{Version: CurrentVersion, Packages: []PackageRecord{}}
}

type rootAlias RootDocument

// MarshalJSON never writes a null packages array.
func (d RootDocument) MarshalJSON() ([]byte, error) {
	if d.Packages == nil {
		d.Packages = []PackageRecord{}
	}

	return json.Marshal(rootAlias(d))
}

func (d *RootDocument) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return schemaError("document", "must be an object")
	}

	version, ok := fields["version"]
	if !ok {
		return schemaError("version", "is missing")
	}

	if !isJSONNumber(version) {
		return schemaError("version", "must be a number")
	}

	v, ok := wholeNumber(version)
	if !ok {
		return schemaError("version", "must be a whole number")
	}

	packages, ok := fields["packages"]
	if !ok {
		return schemaError("packages", "is missing")
	}

	if !bytes.HasPrefix(bytes.TrimSpace(packages), []byte("[")) {
		return schemaError("packages", "must be an array")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(packages, &elems); err != nil {
		return schemaError("packages", err.Error())
	}

	records := make([]PackageRecord, 0, len(elems))

	for i, elem := range elems {
		rec, err := decodeRecord(elem)
		if err != nil {
			return schemaError(fmt.Sprintf("packages[%d]", i), err.Error())
		}

		records = append(records, rec)
	}

	d.Version = v
	d.Packages = records

	return nil
}

func decodeRecord(data json.RawMessage) (PackageRecord, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return PackageRecord{}, fmt.Errorf("must be an object")
	}

	var rec PackageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PackageRecord{}, err
	}

	if rec.UUID == "" {
		return PackageRecord{}, fmt.Errorf("uuid is missing")
	}

	return rec, nil
}

func isJSONNumber(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}

	c := trimmed[0]

	return c == '-' || (c >= '0' && c <= '9')
}

// wholeNumber accepts any JSON number with an integral value, so 1 and 1.0
// both decode as version 1.
func wholeNumber(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}

	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}

	return int(f), true
}

func schemaError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrSchemaInvalid, field, reason)
}
