package registry

import (
	"context"
	"designlink/assethash"
	"designlink/core"
	"designlink/stores/memory"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// Mock blob store for testing
type mockStore struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
	putErr error
	puts   int
}

func newMockStore() *mockStore {
	return &mockStore{values: make(map[string][]byte)}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return v, nil
}

func (m *mockStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.values[key] = append([]byte(nil), data...)
	return nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockStore) stored(t *testing.T, kind core.AssetKind) []core.AssetRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.values[kind.StorageKey()]
	if !ok {
		return nil
	}
	var records []core.AssetRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("stored data is not a JSON array: %v", err)
	}
	return records
}

func svgN(n int) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d"><circle r="%d"/></svg>`, n+1, n+1, n))
}

func fontN(n int) []byte {
	return []byte(fmt.Sprintf("wOF2font-body-%d", n))
}

func TestAdd_Vector(t *testing.T) {
	store := newMockStore()
	reg := NewVectorRegistry(store, DefaultVectorLimits)
	ctx := context.Background()

	rec, err := reg.Add(ctx, svgN(1), "star.svg")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if rec.ID != "svg-"+rec.CanonicalHash {
		t.Errorf("ID %q does not match hash %q", rec.ID, rec.CanonicalHash)
	}
	if rec.ID != assethash.GenerateID(core.KindVector, []byte(rec.Content)) {
		t.Error("stored content does not hash to the record id")
	}
	if rec.Name != "star.svg" {
		t.Errorf("Name = %q, want star.svg", rec.Name)
	}
	if rec.Vector == nil || rec.Vector.ViewBox != "0 0 2 2" {
		t.Errorf("vector meta = %+v", rec.Vector)
	}
	if rec.UploadedAt == 0 {
		t.Error("UploadedAt not set")
	}

	if got := store.stored(t, core.KindVector); len(got) != 1 || got[0].ID != rec.ID {
		t.Errorf("storage mirror = %+v", got)
	}
}

func TestAdd_DuplicateAsymmetry(t *testing.T) {
	store := newMockStore()
	vectors := NewVectorRegistry(store, DefaultVectorLimits)
	fonts := NewFontRegistry(store, DefaultFontLimits)
	ctx := context.Background()

	first, err := vectors.Add(ctx, svgN(1), "a")
	if err != nil {
		t.Fatalf("vector Add() failed: %v", err)
	}
	putsBefore := store.puts
	// Same icon, different formatting: dedupes to the existing record.
	again, err := vectors.Add(ctx, []byte(strings.Replace(string(svgN(1)), "><", ">\n  <", -1)), "b")
	if err != nil {
		t.Fatalf("duplicate vector Add() failed: %v", err)
	}
	if again != first {
		t.Errorf("duplicate vector returned %+v, want existing %+v", again, first)
	}
	if store.puts != putsBefore {
		t.Error("duplicate vector Add() wrote to storage")
	}
	if n := vectors.Stats().Count; n != 1 {
		t.Errorf("vector count = %d, want 1", n)
	}

	if _, err := fonts.Add(ctx, fontN(1), "Brand.woff2"); err != nil {
		t.Fatalf("font Add() failed: %v", err)
	}
	putsBefore = store.puts
	_, err = fonts.Add(ctx, fontN(1), "Brand copy.woff2")
	if !errors.Is(err, ErrAlreadyUploaded) {
		t.Fatalf("duplicate font error = %v, want ErrAlreadyUploaded", err)
	}
	var perr *PolicyError
	if !errors.As(err, &perr) || perr.Kind != core.KindFont || !strings.Contains(perr.Reason, "already been uploaded") {
		t.Errorf("unexpected policy error: %#v", err)
	}
	if store.puts != putsBefore {
		t.Error("duplicate font Add() wrote to storage")
	}
	if n := fonts.Stats().Count; n != 1 {
		t.Errorf("font count = %d, want 1", n)
	}
}

func TestAdd_TooLarge(t *testing.T) {
	reg := NewVectorRegistry(newMockStore(), Limits{MaxCount: 5, MaxBytes: 64})

	_, err := reg.Add(context.Background(), []byte("<svg>"+strings.Repeat(" ", 100)+"</svg>"), "")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Add() error = %v, want ErrTooLarge", err)
	}
	if !strings.Contains(err.Error(), "64 B") {
		t.Errorf("error should mention the ceiling: %q", err.Error())
	}
}

func TestAdd_SizeCheckedBeforeFormat(t *testing.T) {
	reg := NewFontRegistry(newMockStore(), Limits{MaxCount: 5, MaxBytes: 4})

	_, err := reg.Add(context.Background(), []byte("not a font at all"), "")
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Add() error = %v, want ErrTooLarge", err)
	}
}

func TestAdd_InvalidFormat(t *testing.T) {
	store := newMockStore()
	vectors := NewVectorRegistry(store, DefaultVectorLimits)
	fonts := NewFontRegistry(store, DefaultFontLimits)
	ctx := context.Background()

	if _, err := vectors.Add(ctx, []byte("<html/>"), ""); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("vector Add() error = %v, want ErrInvalidFormat", err)
	}
	if _, err := fonts.Add(ctx, []byte("GIF89a"), ""); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("font Add() error = %v, want ErrInvalidFormat", err)
	}
	if len(store.values) != 0 {
		t.Error("rejected uploads reached storage")
	}
}

func TestAdd_SanitizesBeforeHashing(t *testing.T) {
	reg := NewVectorRegistry(newMockStore(), DefaultVectorLimits)
	ctx := context.Background()

	clean, err := reg.Add(ctx, []byte(`<svg><rect width="1"/></svg>`), "")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	dirty, err := reg.Add(ctx, []byte(`<svg onload="x()"><rect width="1"/><script>x()</script></svg>`), "")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if dirty.ID != clean.ID {
		t.Errorf("sanitized upload should dedupe to %s, got %s", clean.ID, dirty.ID)
	}
}

func TestAdd_QuotaEnforced(t *testing.T) {
	for _, tc := range []struct {
		name string
		reg  *Registry
		gen  func(int) []byte
	}{
		{"vector", NewVectorRegistry(newMockStore(), Limits{MaxCount: 3, MaxBytes: 4096}), svgN},
		{"font", NewFontRegistry(newMockStore(), Limits{MaxCount: 3, MaxBytes: 4096}), fontN},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if _, err := tc.reg.Add(ctx, tc.gen(i), ""); err != nil {
					t.Fatalf("Add(%d) failed: %v", i, err)
				}
			}

			stats := tc.reg.Stats()
			if stats.CanAddMore || stats.RemainingSlots != 0 {
				t.Errorf("stats after filling = %+v", stats)
			}

			_, err := tc.reg.Add(ctx, tc.gen(99), "")
			if !errors.Is(err, ErrMaxReached) {
				t.Fatalf("Add() past quota error = %v, want ErrMaxReached", err)
			}
			if !strings.Contains(err.Error(), "Maximum of 3") {
				t.Errorf("unexpected reason: %q", err.Error())
			}
			if tc.reg.Stats().Count != 3 {
				t.Errorf("count = %d, want 3", tc.reg.Stats().Count)
			}
		})
	}
}

func TestAdd_FullRegistryRefusesKnownContent(t *testing.T) {
	for _, tc := range []struct {
		name string
		reg  *Registry
		gen  func(int) []byte
	}{
		{"vector", NewVectorRegistry(newMockStore(), Limits{MaxCount: 2, MaxBytes: 4096}), svgN},
		{"font", NewFontRegistry(newMockStore(), Limits{MaxCount: 2, MaxBytes: 4096}), fontN},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 2; i++ {
				if _, err := tc.reg.Add(ctx, tc.gen(i), ""); err != nil {
					t.Fatalf("Add(%d) failed: %v", i, err)
				}
			}

			_, err := tc.reg.Add(ctx, tc.gen(0), "again")
			if !errors.Is(err, ErrMaxReached) {
				t.Errorf("Add() of stored content at quota error = %v, want ErrMaxReached", err)
			}
			if tc.reg.Stats().Count != 2 {
				t.Errorf("count = %d, want 2", tc.reg.Stats().Count)
			}
		})
	}
}

func TestAdd_PersistFailureLeavesMemoryUntouched(t *testing.T) {
	store := newMockStore()
	reg := NewVectorRegistry(store, DefaultVectorLimits)
	ctx := context.Background()

	store.putErr = errors.New("disk full")
	if _, err := reg.Add(ctx, svgN(1), ""); err == nil {
		t.Fatal("Add() should fail when storage fails")
	}
	if reg.Stats().Count != 0 {
		t.Error("in-memory collection changed although persisting failed")
	}
}

func TestLoad_FiltersAndSorts(t *testing.T) {
	store := newMockStore()
	records := []core.AssetRecord{
		{ID: "svg-00000001", CanonicalHash: "00000001", UploadedAt: 100},
		{ID: "not-an-id!", UploadedAt: 500},
		{ID: "font-00000002", CanonicalHash: "00000002", UploadedAt: 400},
		{ID: "svg-00000003", CanonicalHash: "00000003", UploadedAt: 300},
	}
	data, _ := json.Marshal(records)
	store.values[core.KindVector.StorageKey()] = data

	reg := NewVectorRegistry(store, DefaultVectorLimits)
	loaded, err := reg.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("Load() returned %d records, want 2: %+v", len(loaded), loaded)
	}
	if loaded[0].ID != "svg-00000003" || loaded[1].ID != "svg-00000001" {
		t.Errorf("Load() order = %s, %s; want newest first", loaded[0].ID, loaded[1].ID)
	}
	if !reg.Has("svg-00000001") || reg.Has("font-00000002") {
		t.Error("Has() disagrees with loaded collection")
	}
}

func TestLoad_MissingKeyIsEmpty(t *testing.T) {
	reg := NewFontRegistry(newMockStore(), DefaultFontLimits)

	loaded, err := reg.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Load() returned %d records, want 0", len(loaded))
	}
}

func TestLoad_Corrupted(t *testing.T) {
	store := newMockStore()
	store.values[core.KindVector.StorageKey()] = []byte("{not json")
	reg := NewVectorRegistry(store, DefaultVectorLimits)
	ctx := context.Background()

	_, err := reg.Load(ctx)
	if !errors.Is(err, ErrCorruptStorage) {
		t.Fatalf("Load() error = %v, want ErrCorruptStorage", err)
	}
	if reg.Stats().Count != 0 {
		t.Error("corrupted load should leave an empty collection")
	}

	// Loaded state is sticky: Add works on the empty collection and
	// replaces the corrupted entry instead of failing again.
	if _, err := reg.Add(ctx, svgN(1), ""); err != nil {
		t.Fatalf("Add() after corrupted load failed: %v", err)
	}
	if got := store.stored(t, core.KindVector); len(got) != 1 {
		t.Errorf("storage mirror has %d records, want 1", len(got))
	}
}

func TestLoad_ReadError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")
	reg := NewVectorRegistry(store, DefaultVectorLimits)

	if _, err := reg.Load(context.Background()); !errors.Is(err, store.getErr) {
		t.Errorf("Load() error = %v, want read error", err)
	}
	if _, err := reg.Add(context.Background(), svgN(1), ""); !errors.Is(err, store.getErr) {
		t.Errorf("Add() error = %v, want read error", err)
	}
}

func TestDeleteRename(t *testing.T) {
	store := newMockStore()
	reg := NewVectorRegistry(store, DefaultVectorLimits)
	ctx := context.Background()

	a, _ := reg.Add(ctx, svgN(1), "a")
	b, _ := reg.Add(ctx, svgN(2), "b")

	ok, err := reg.Rename(ctx, a.ID, "renamed")
	if err != nil || !ok {
		t.Fatalf("Rename() = %v, %v", ok, err)
	}
	got, _ := reg.Get(a.ID)
	if got.Name != "renamed" || got.Content != a.Content || got.ID != a.ID {
		t.Errorf("Rename() changed more than the name: %+v", got)
	}

	ok, err = reg.Rename(ctx, "svg-ffffffff", "x")
	if err != nil || ok {
		t.Errorf("Rename() of unknown id = %v, %v; want false, nil", ok, err)
	}

	ok, err = reg.Delete(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if reg.Has(b.ID) {
		t.Error("deleted asset still present")
	}
	ok, _ = reg.Delete(ctx, b.ID)
	if ok {
		t.Error("second Delete() should report false")
	}

	stored := store.stored(t, core.KindVector)
	if len(stored) != 1 || stored[0].Name != "renamed" {
		t.Errorf("storage mirror = %+v", stored)
	}
}

func TestDelete_LastRecordKeepsKey(t *testing.T) {
	store := newMockStore()
	reg := NewVectorRegistry(store, DefaultVectorLimits)
	ctx := context.Background()

	rec, _ := reg.Add(ctx, svgN(1), "")
	reg.Delete(ctx, rec.ID)

	data, ok := store.values[core.KindVector.StorageKey()]
	if !ok || string(data) != "[]" {
		t.Errorf("storage after deleting last record = %q, %v; want []", data, ok)
	}
}

func TestClear_RemovesKey(t *testing.T) {
	store := memory.NewStore()
	reg := NewFontRegistry(store, DefaultFontLimits)
	ctx := context.Background()

	reg.Add(ctx, fontN(1), "")
	reg.Add(ctx, fontN(2), "")

	if err := reg.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, err := store.Get(ctx, core.KindFont.StorageKey()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("raw read after Clear() error = %v, want ErrNotFound", err)
	}
	if s := reg.Stats(); s.Count != 0 || s.TotalBytes != 0 || !s.CanAddMore {
		t.Errorf("stats after Clear() = %+v", s)
	}
}

func TestGetContent(t *testing.T) {
	store := newMockStore()
	vectors := NewVectorRegistry(store, DefaultVectorLimits)
	fonts := NewFontRegistry(store, DefaultFontLimits)
	ctx := context.Background()

	v, _ := vectors.Add(ctx, svgN(1), "")
	content, ok := vectors.GetContent(v.ID)
	if !ok || string(content) != string(svgN(1)) {
		t.Errorf("vector GetContent() = %q, %v", content, ok)
	}

	raw := append(fontN(1), 0x00, 0xff, 0x10)
	f, err := fonts.Add(ctx, raw, "Brand.woff2")
	if err != nil {
		t.Fatalf("font Add() failed: %v", err)
	}
	content, ok = fonts.GetContent(f.ID)
	if !ok || string(content) != string(raw) {
		t.Errorf("font GetContent() = %v, %v; want %v", content, ok, raw)
	}
	if f.SizeBytes != len(raw) || f.Font == nil || f.Font.Family != "Brand" {
		t.Errorf("font record = %+v", f)
	}

	if _, ok := fonts.GetContent("font-00000000"); ok {
		t.Error("GetContent() of unknown id should report false")
	}
}

func TestStats(t *testing.T) {
	reg := NewVectorRegistry(newMockStore(), Limits{MaxCount: 5, MaxBytes: 4096})
	ctx := context.Background()

	a, _ := reg.Add(ctx, svgN(1), "")
	b, _ := reg.Add(ctx, svgN(2), "")

	s := reg.Stats()
	want := Stats{Count: 2, TotalBytes: a.SizeBytes + b.SizeBytes, MaxCount: 5, RemainingSlots: 3, CanAddMore: true}
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
}

func TestList_IsACopy(t *testing.T) {
	reg := NewVectorRegistry(newMockStore(), DefaultVectorLimits)
	rec, _ := reg.Add(context.Background(), svgN(1), "orig")

	list := reg.List()
	list[0].Name = "mutated"

	got, _ := reg.Get(rec.ID)
	if got.Name != "orig" {
		t.Error("mutating List() result changed the registry")
	}
}

func TestAdd_UploadedAtUsesClock(t *testing.T) {
	reg := NewVectorRegistry(newMockStore(), DefaultVectorLimits)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return fixed }

	rec, _ := reg.Add(context.Background(), svgN(1), "")
	if rec.UploadedAt != fixed.UnixMilli() {
		t.Errorf("UploadedAt = %d, want %d", rec.UploadedAt, fixed.UnixMilli())
	}
}

func TestConcurrentAdds(t *testing.T) {
	store := newMockStore()
	reg := NewVectorRegistry(store, Limits{MaxCount: 100, MaxBytes: 4096})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := reg.Add(ctx, svgN(i), ""); err != nil {
				t.Errorf("Add(%d) failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if n := reg.Stats().Count; n != 30 {
		t.Errorf("in-memory count = %d, want 30", n)
	}
	if n := len(store.stored(t, core.KindVector)); n != 30 {
		t.Errorf("stored count = %d, want 30", n)
	}
}

func TestUpload_ReportsCreation(t *testing.T) {
	reg := NewVectorRegistry(newMockStore(), DefaultVectorLimits)
	ctx := context.Background()

	first, created, err := reg.Upload(ctx, svgN(3), "a.svg")
	if err != nil || !created {
		t.Fatalf("first Upload() = %v, %v", created, err)
	}
	again, created, err := reg.Upload(ctx, svgN(3), "b.svg")
	if err != nil || created {
		t.Fatalf("second Upload() = %v, %v", created, err)
	}
	if again.ID != first.ID || again.Name != "a.svg" {
		t.Errorf("reused record = %+v", again)
	}
	if reg.Limits() != DefaultVectorLimits {
		t.Errorf("Limits() = %+v", reg.Limits())
	}
}
