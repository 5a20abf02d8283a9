// Package registry keeps the user's uploaded assets, one Registry per
// asset kind. Every record is identified by the hash of its canonical
// content, and the whole collection is mirrored to a single BlobStore key.
package registry

import (
	"context"
	"designlink/assethash"
	"designlink/core"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Stats is derived from the in-memory collection.
type Stats struct {
	Count          int  `json:"count"`
	TotalBytes     int  `json:"totalBytes"`
	MaxCount       int  `json:"maxCount"`
	RemainingSlots int  `json:"remainingSlots"`
	CanAddMore     bool `json:"canAddMore"`
}

// Registry serializes every mutation behind one lock, writing the new
// collection to storage before swapping it in memory.
type Registry struct {
	store  core.BlobStore
	policy Policy
	now    func() time.Time

	mu      sync.RWMutex
	loaded  bool
	records []core.AssetRecord
}

func New(store core.BlobStore, policy Policy) *Registry {
	return &Registry{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
}

func NewVectorRegistry(store core.BlobStore, limits Limits) *Registry {
	return New(store, VectorPolicy(limits))
}

func NewFontRegistry(store core.BlobStore, limits Limits) *Registry {
	return New(store, FontPolicy(limits))
}

// Kind returns the asset kind this registry holds.
func (r *Registry) Kind() core.AssetKind {
	return r.policy.Kind
}

// Limits returns the quota this registry enforces.
func (r *Registry) Limits() Limits {
	return r.policy.Limits
}

func (r *Registry) log() *logrus.Entry {
	return logrus.WithField("asset_kind", r.policy.Kind)
}

// Load reads the collection from storage, dropping records with a
// malformed id, newest first. Corrupted data is reported, but the registry
// still counts as loaded with an empty collection so callers do not retry
// forever.
func (r *Registry) Load(ctx context.Context) ([]core.AssetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (r *Registry) load(ctx context.Context) error {
	log := r.log()

	data, err := r.store.Get(ctx, r.policy.Kind.StorageKey())
	if errors.Is(err, core.ErrNotFound) {
		r.records = nil
		r.loaded = true
		return nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to read assets from storage")
		return err
	}

	var stored []core.AssetRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		log.WithError(err).Warn("Stored assets are corrupted, starting empty")
		r.records = nil
		r.loaded = true
		return fmt.Errorf("%w: %v", ErrCorruptStorage, err)
	}

	records := make([]core.AssetRecord, 0, len(stored))
	for _, rec := range stored {
		kind, _, err := assethash.ParseID(rec.ID)
		if err != nil || kind != r.policy.Kind {
			log.WithField("asset_id", rec.ID).Warn("Discarding stored asset with invalid id")
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt > records[j].UploadedAt
	})

	r.records = records
	r.loaded = true
	log.Infof("Loaded %d assets", len(records))
	return nil
}

// ensureLoaded must be called with mu held for writing.
func (r *Registry) ensureLoaded(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	if err := r.load(ctx); err != nil && !errors.Is(err, ErrCorruptStorage) {
		return err
	}
	return nil
}

func (r *Registry) persist(ctx context.Context, records []core.AssetRecord) error {
	if records == nil {
		records = []core.AssetRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, r.policy.Kind.StorageKey(), data); err != nil {
		r.log().WithError(err).Error("Failed to persist assets")
		return err
	}
	return nil
}

// Add validates and stores raw content. Checks run in order: size ceiling,
// format and sanitization, count quota, duplicate policy. A full registry
// refuses every upload, known content included.
func (r *Registry) Add(ctx context.Context, raw []byte, name string) (core.AssetRecord, error) {
	rec, _, err := r.Upload(ctx, raw, name)
	return rec, err
}

// Upload is Add that also reports whether a new record was created, as
// opposed to an existing one being reused.
func (r *Registry) Upload(ctx context.Context, raw []byte, name string) (core.AssetRecord, bool, error) {
	limits := r.policy.Limits
	if len(raw) > limits.MaxBytes {
		return core.AssetRecord{}, false, r.refuse(ErrTooLarge,
			fmt.Sprintf("%s file is too large (max %s)", r.policy.Label, humanize.IBytes(uint64(limits.MaxBytes))))
	}

	prepared, err := r.policy.Prepare(raw, strings.TrimSpace(name))
	if err != nil {
		return core.AssetRecord{}, false, r.refuse(ErrInvalidFormat,
			fmt.Sprintf("Invalid %s file: %v", r.policy.Label, err))
	}

	digest := assethash.Digest(assethash.Canonicalize(r.policy.Kind, prepared.Hashed))
	id := assethash.MakeID(r.policy.Kind, digest)
	log := r.log().WithField("asset_id", id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return core.AssetRecord{}, false, err
	}

	if len(r.records) >= limits.MaxCount {
		log.Warn("Asset quota reached")
		return core.AssetRecord{}, false, r.refuse(ErrMaxReached,
			fmt.Sprintf("Maximum of %d %s files reached", limits.MaxCount, r.policy.Label))
	}

	if existing, ok := r.find(id); ok {
		if r.policy.Duplicates == ReuseExisting {
			log.Info("Asset already stored, reusing existing record")
			return existing, false, nil
		}
		log.Warn("Duplicate asset rejected")
		return core.AssetRecord{}, false, r.refuse(ErrAlreadyUploaded,
			fmt.Sprintf("This %s has already been uploaded as %q", strings.ToLower(r.policy.Label), existing.Name))
	}

	rec := prepared.Record
	rec.ID = id
	rec.CanonicalHash = digest
	rec.UploadedAt = r.now().UnixMilli()
	if rec.Name == "" {
		rec.Name = id
	}

	next := make([]core.AssetRecord, 0, len(r.records)+1)
	next = append(next, r.records...)
	next = append(next, rec)
	if err := r.persist(ctx, next); err != nil {
		return core.AssetRecord{}, false, err
	}
	r.records = next

	log.WithField("size_bytes", rec.SizeBytes).Info("Asset added")
	return rec, true, nil
}

func (r *Registry) refuse(sentinel error, reason string) *PolicyError {
	return &PolicyError{Kind: r.policy.Kind, Reason: reason, Err: sentinel}
}

// Delete removes a record. It reports false for an unknown id.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return false, err
	}

	idx := r.index(id)
	if idx < 0 {
		r.log().WithField("asset_id", id).Warn("Asset not found for deletion")
		return false, nil
	}

	next := make([]core.AssetRecord, 0, len(r.records)-1)
	next = append(next, r.records[:idx]...)
	next = append(next, r.records[idx+1:]...)
	if err := r.persist(ctx, next); err != nil {
		return false, err
	}
	r.records = next

	r.log().WithField("asset_id", id).Info("Asset deleted")
	return true, nil
}

// Rename changes a record's display name. Content and id never change.
func (r *Registry) Rename(ctx context.Context, id, newName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return false, err
	}

	idx := r.index(id)
	if idx < 0 {
		r.log().WithField("asset_id", id).Warn("Asset not found for rename")
		return false, nil
	}

	next := r.snapshot()
	next[idx].Name = newName
	if err := r.persist(ctx, next); err != nil {
		return false, err
	}
	r.records = next

	r.log().WithFields(logrus.Fields{"asset_id": id, "name": newName}).Info("Asset renamed")
	return true, nil
}

// Clear removes the storage key itself and empties the collection.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(ctx, r.policy.Kind.StorageKey()); err != nil {
		r.log().WithError(err).Error("Failed to clear assets")
		return err
	}
	r.records = nil
	r.loaded = true

	r.log().Info("Assets cleared")
	return nil
}

// Get returns the record with the given id.
func (r *Registry) Get(id string) (core.AssetRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(id)
}

// GetContent returns the raw asset bytes: SVG markup or font binary.
func (r *Registry) GetContent(id string) ([]byte, bool) {
	rec, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	content, err := decodeContent(r.policy.Kind, rec.Content)
	if err != nil {
		r.log().WithField("asset_id", id).WithError(err).Warn("Stored asset content is unreadable")
		return nil, false
	}
	return content, true
}

func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// List returns a copy of the collection in its current order.
func (r *Registry) List() []core.AssetRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, rec := range r.records {
		total += rec.SizeBytes
	}
	remaining := r.policy.Limits.MaxCount - len(r.records)
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		Count:          len(r.records),
		TotalBytes:     total,
		MaxCount:       r.policy.Limits.MaxCount,
		RemainingSlots: remaining,
		CanAddMore:     remaining > 0,
	}
}

func (r *Registry) index(id string) int {
	for i, rec := range r.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) find(id string) (core.AssetRecord, bool) {
	if i := r.index(id); i >= 0 {
		return r.records[i], true
	}
	return core.AssetRecord{}, false
}

func (r *Registry) snapshot() []core.AssetRecord {
	out := make([]core.AssetRecord, len(r.records))
	copy(out, r.records)
	return out
}
