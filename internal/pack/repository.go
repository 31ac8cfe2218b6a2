package pack

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/calvinalkan/wordbank/internal/docstore"
	"github.com/calvinalkan/wordbank/internal/logger"
)

// EventPackagesChanged is announced after every successful catalog mutation.
const EventPackagesChanged = "packages-changed"

// Change operations carried in [ChangePayload.Op].
const (
	OpAdd     = "add"
	OpAdvance = "advance"
	OpStart   = "start"
	OpRemove  = "remove"
	OpReset   = "reset"
)

// ChangePayload describes a catalog mutation to peer contexts.
type ChangePayload struct {
	UUID string `json:"uuid,omitempty"`
	Op   string `json:"op"`
}

// Announcer broadcasts a change to every other context.
type Announcer interface {
	AnnounceToAll(ctx context.Context, event string, payload any) error
}

// Options configures a [Repository].
type Options struct {
	// Logger defaults to [logger.Nop].
	Logger *logger.Logger

	// Announcer is told about every mutation. Nil disables announcements.
	Announcer Announcer

	// MergePolicy resolves index collisions. Defaults to [LastWriteWins].
	MergePolicy MergePolicy
}

// Repository is one context's view of the package catalog.
//
// The in-memory packages and index are caches of data.json. Mutations go
// through a locked read-modify-write of the whole document and then reload
// the cache, so changes made by peer contexts are never overwritten.
//
// Repository is safe for concurrent use.
type Repository struct {
	store     *docstore.Store
	log       *logger.Logger
	announcer Announcer
	merge     MergePolicy

	mu       sync.RWMutex
	packages []PackageRecord
	index    Index
	ready    bool
}

// New returns a Repository backed by store. Call [Repository.Initialize]
// before mutating.
func New(store *docstore.Store, opts Options) *Repository {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	merge := opts.MergePolicy
	if merge == nil {
		merge = LastWriteWins
	}

	return &Repository{
		store:     store,
		log:       log.With("component", "pack"),
		announcer: opts.Announcer,
		merge:     merge,
		index:     Index{},
	}
}

// Initialize makes sure the data directory, the packages directory and
// data.json exist, recovers a corrupt catalog and loads the cache. A missing
// data.json is created empty without a backup or announcement.
//
// A catalog that is not valid JSON or fails schema validation is copied to
// data.json.bak and replaced with an empty catalog. All recorded packages are
// dropped. IO errors during recovery are returned and leave the repository
// unusable for mutations.
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	r.ready = false
	r.mu.Unlock()

	if err := r.store.Mkdir(""); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := r.store.Mkdir(PackagesDir); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := r.createIfMissing(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	recovered, err := r.recoverIfCorrupt()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := r.Refresh(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()

	if recovered {
		r.announce(ctx, ChangePayload{Op: OpReset})
	}

	return nil
}

// createIfMissing writes an empty catalog when data.json does not exist.
func (r *Repository) createIfMissing() error {
	return r.store.WithLock(DataFile, func() error {
		exists, err := r.store.Exists(DataFile)
		if err != nil || exists {
			return err
		}

		r.log.Debug("creating data document", "file", DataFile)

		return docstore.SaveLocked(r.store, DataFile, NewRootDocument())
	})
}

// recoverIfCorrupt validates data.json under the write lock and resets it if
// it cannot be decoded. Holding the lock keeps two contexts from recovering
// the same file twice.
func (r *Repository) recoverIfCorrupt() (bool, error) {
	recovered := false

	err := r.store.WithLock(DataFile, func() error {
		_, err := docstore.Load[RootDocument](r.store, DataFile)
		if err == nil {
			return nil
		}

		if !errors.Is(err, docstore.ErrParse) && !errors.Is(err, ErrSchemaInvalid) {
			return err
		}

		r.log.Warn("data document is corrupt, resetting",
			"file", DataFile, "backup", BackupFile, "error", err)

		if err := r.store.Copy(DataFile, BackupFile); err != nil {
			return err
		}

		if err := r.store.Remove(DataFile); err != nil {
			return err
		}

		if err := docstore.SaveLocked(r.store, DataFile, NewRootDocument()); err != nil {
			return err
		}

		recovered = true

		return nil
	})

	return recovered, err
}

// Refresh reloads data.json and rebuilds the index. It does not recover a
// corrupt document; the cache is left unchanged on error.
func (r *Repository) Refresh() error {
	doc, err := docstore.Load[RootDocument](r.store, DataFile)
	if err != nil {
		return err
	}

	idx := BuildIndex(doc.Packages, r.merge)

	r.mu.Lock()
	r.packages = doc.Packages
	r.index = idx
	r.mu.Unlock()

	return nil
}

// Packages returns the cached catalog in document order.
func (r *Repository) Packages() []PackageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.packages)
}

// Index returns a copy of the cached bundle/sub index.
func (r *Repository) Index() Index {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.index.Clone()
}

// Lookup returns the indexed record for (bundle, sub).
func (r *Repository) Lookup(bundle, sub string) (PackageRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.index.Lookup(bundle, sub)
}

// Get returns the first cached record with uuid.
func (r *Repository) Get(id string) (PackageRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.packages {
		if p.UUID == id {
			return p, true
		}
	}

	return PackageRecord{}, false
}

// Resolve finds a package by exact uuid, by "bundle#sub", or by a unique
// uuid prefix.
func (r *Repository) Resolve(ref string) (PackageRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return PackageRecord{}, fmt.Errorf("%w: empty reference", ErrPackageNotFound)
	}

	if rec, ok := r.Get(ref); ok {
		return rec, nil
	}

	if strings.Contains(ref, NameDelimiter) {
		if rec, ok := r.Lookup(SplitName(ref)); ok {
			return rec, nil
		}
	}

	var matches []PackageRecord

	for _, p := range r.Packages() {
		if strings.HasPrefix(p.UUID, ref) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return PackageRecord{}, fmt.Errorf("%w: %s", ErrPackageNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return PackageRecord{}, fmt.Errorf("%w: %s matches %d packages", ErrAmbiguousRef, ref, len(matches))
	}
}

// WordBank loads the word bank of the package with uuid.
func (r *Repository) WordBank(id string) ([]WordBankEntry, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidUUID, id, err)
	}

	return docstore.Load[[]WordBankEntry](r.store, WordBankName(id))
}

// AddPackage persists entries as the word bank of rec, appends rec to the
// catalog and reloads the cache.
//
// Both writes happen under the catalog lock after the duplicate check, and
// the word bank is written first so a catalog entry never points at a
// missing word bank.
func (r *Repository) AddPackage(ctx context.Context, rec PackageRecord, entries []WordBankEntry) error {
	if err := r.checkReady(); err != nil {
		return err
	}

	if err := validateNew(rec, entries); err != nil {
		return err
	}

	if entries == nil {
		entries = []WordBankEntry{}
	}

	err := r.store.WithLock(DataFile, func() error {
		doc, err := docstore.Load[RootDocument](r.store, DataFile)
		if err != nil {
			return err
		}

		for _, p := range doc.Packages {
			if p.UUID == rec.UUID {
				return fmt.Errorf("%w: %s", ErrDuplicateUUID, rec.UUID)
			}
		}

		if err := docstore.Save(r.store, WordBankName(rec.UUID), entries); err != nil {
			return err
		}

		doc.Packages = append(doc.Packages, rec)

		return docstore.SaveLocked(r.store, DataFile, doc)
	})
	if err != nil {
		return fmt.Errorf("add package: %w", err)
	}

	r.log.Info("package added", "uuid", rec.UUID, "name", rec.Name, "total", rec.Total)

	return r.afterMutation(ctx, ChangePayload{UUID: rec.UUID, Op: OpAdd})
}

func validateNew(rec PackageRecord, entries []WordBankEntry) error {
	if err := uuid.Validate(rec.UUID); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidUUID, rec.UUID, err)
	}

	if rec.Total != len(entries) {
		return fmt.Errorf("%w: total=%d but %d entries", ErrInvalidRecord, rec.Total, len(entries))
	}

	if rec.Current != NotStarted && (rec.Current < 0 || rec.Current > rec.Total-1) {
		return fmt.Errorf("%w: current=%d out of range for total=%d", ErrInvalidRecord, rec.Current, rec.Total)
	}

	return nil
}

// errNoChange aborts an update without writing.
var errNoChange = errors.New("no change")

// AdvanceProgress moves the cursor of package uuid forward by one.
//
// It is a no-op, reported by a false result, when the package is unknown,
// not started, or already on its last entry. The check is repeated against
// the freshly loaded document inside the locked update, so a concurrent
// advance from another context can never push the cursor past total-1.
func (r *Repository) AdvanceProgress(ctx context.Context, id string) (PackageRecord, bool, error) {
	return r.mutateProgress(ctx, id, OpAdvance, func(p *PackageRecord) bool {
		if !p.Started() || p.Current >= p.Total-1 {
			return false
		}

		p.Current++

		return true
	})
}

// Start moves the cursor of package uuid from not-started to the first
// entry. It is a no-op when the package is already started or empty.
func (r *Repository) Start(ctx context.Context, id string) (PackageRecord, bool, error) {
	return r.mutateProgress(ctx, id, OpStart, func(p *PackageRecord) bool {
		if p.Started() || p.Total == 0 {
			return false
		}

		p.Current = 0

		return true
	})
}

func (r *Repository) mutateProgress(ctx context.Context, id, op string, step func(*PackageRecord) bool) (PackageRecord, bool, error) {
	if err := r.checkReady(); err != nil {
		return PackageRecord{}, false, err
	}

	cached, ok := r.Get(id)
	if !ok {
		return PackageRecord{}, false, nil
	}

	probe := cached
	if !step(&probe) {
		return cached, false, nil
	}

	var updated PackageRecord

	err := docstore.Update(r.store, DataFile, func(doc RootDocument) (RootDocument, error) {
		for i := range doc.Packages {
			if doc.Packages[i].UUID != id {
				continue
			}

			if !step(&doc.Packages[i]) {
				return doc, errNoChange
			}

			updated = doc.Packages[i]

			return doc, nil
		}

		return doc, errNoChange
	})
	if errors.Is(err, errNoChange) {
		if refreshErr := r.Refresh(); refreshErr != nil {
			return cached, false, refreshErr
		}

		current, _ := r.Get(id)

		return current, false, nil
	}

	if err != nil {
		return cached, false, fmt.Errorf("%s: %w", op, err)
	}

	r.log.Debug("progress changed", "uuid", id, "op", op, "current", updated.Current, "total", updated.Total)

	if err := r.afterMutation(ctx, ChangePayload{UUID: id, Op: op}); err != nil {
		return updated, true, err
	}

	return updated, true, nil
}

// Remove drops every catalog entry with uuid and deletes its word bank.
func (r *Repository) Remove(ctx context.Context, id string) error {
	if err := r.checkReady(); err != nil {
		return err
	}

	err := docstore.Update(r.store, DataFile, func(doc RootDocument) (RootDocument, error) {
		n := len(doc.Packages)
		doc.Packages = slices.DeleteFunc(doc.Packages, func(p PackageRecord) bool {
			return p.UUID == id
		})

		if len(doc.Packages) == n {
			return doc, fmt.Errorf("%w: %s", ErrPackageNotFound, id)
		}

		return doc, nil
	})
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	if uuid.Validate(id) == nil {
		if err := r.store.Remove(WordBankName(id)); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
	}

	r.log.Info("package removed", "uuid", id)

	return r.afterMutation(ctx, ChangePayload{UUID: id, Op: OpRemove})
}

func (r *Repository) checkReady() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.ready {
		return ErrNotReady
	}

	return nil
}

func (r *Repository) afterMutation(ctx context.Context, change ChangePayload) error {
	if err := r.Refresh(); err != nil {
		return fmt.Errorf("%s: refresh: %w", change.Op, err)
	}

	r.announce(ctx, change)

	return nil
}

// announce is fire-and-forget: a failed broadcast never fails the mutation
// that has already been persisted.
func (r *Repository) announce(ctx context.Context, change ChangePayload) {
	if r.announcer == nil {
		return
	}

	if err := r.announcer.AnnounceToAll(ctx, EventPackagesChanged, change); err != nil {
		r.log.Warn("announce failed", "event", EventPackagesChanged, "op", change.Op, "error", err)
	}
}
