package pack

import "maps"

// Index maps bundle → sub → package record. It is derived from the catalog
// on every load and never persisted.
type Index map[string]map[string]PackageRecord

// MergePolicy decides which record an index slot keeps when two records
// share the same (bundle, sub). existing was inserted earlier in document
// order than incoming.
type MergePolicy func(existing, incoming PackageRecord) PackageRecord

// LastWriteWins keeps the record that appears later in the catalog.
func LastWriteWins(_, incoming PackageRecord) PackageRecord {
	return incoming
}

// FirstWriteWins keeps the record that appears earlier in the catalog.
func FirstWriteWins(existing, _ PackageRecord) PackageRecord {
	return existing
}

// BuildIndex groups records by bundle and sub in document order, resolving
// collisions with merge. A nil merge means [LastWriteWins].
func BuildIndex(records []PackageRecord, merge MergePolicy) Index {
	if merge == nil {
		merge = LastWriteWins
	}

	idx := make(Index)

	for _, rec := range records {
		bundle, sub := SplitName(rec.Name)

		subs, ok := idx[bundle]
		if !ok {
			subs = make(map[string]PackageRecord)
			idx[bundle] = subs
		}

		if existing, ok := subs[sub]; ok {
			subs[sub] = merge(existing, rec)

			continue
		}

		subs[sub] = rec
	}

	return idx
}

// Lookup returns the record at (bundle, sub).
func (idx Index) Lookup(bundle, sub string) (PackageRecord, bool) {
	rec, ok := idx[bundle][sub]

	return rec, ok
}

// Clone returns a deep copy of the index.
func (idx Index) Clone() Index {
	out := make(Index, len(idx))

	for bundle, subs := range idx {
		out[bundle] = maps.Clone(subs)
	}

	return out
}
