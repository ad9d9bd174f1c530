package annotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfreader-backend/internal/geometry"
	"pdfreader-backend/internal/model"
)

// fakePersister is an in-memory Persister whose failure mode can be toggled.
type fakePersister struct {
	mu      sync.Mutex
	saved   map[string]*model.Annotation
	deleted map[string]bool
	fail    bool
}

func newFakePersister() *fakePersister {
	return &fakePersister{
		saved:   make(map[string]*model.Annotation),
		deleted: make(map[string]bool),
	}
}

func (f *fakePersister) Save(_ context.Context, a *model.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("api unreachable")
	}
	f.saved[a.ID] = a
	return nil
}

func (f *fakePersister) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("api unreachable")
	}
	f.deleted[id] = true
	return nil
}

func (f *fakePersister) ListByDocument(_ context.Context, _ int64) ([]*model.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("api unreachable")
	}
	var out []*model.Annotation
	for _, a := range f.saved {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakePersister) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakePersister) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakePersister) wasDeleted(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[id]
}

// fakeBackup records mirrored page lists.
type fakeBackup struct {
	mu    sync.Mutex
	pages map[string][]*model.Annotation
}

func newFakeBackup() *fakeBackup {
	return &fakeBackup{pages: make(map[string][]*model.Annotation)}
}

func (f *fakeBackup) WritePage(_ context.Context, userID, documentID int64, page int, list []*model.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[fmt.Sprintf("%d:%d:%d", userID, documentID, page)] = list
	return nil
}

func (f *fakeBackup) ReadAll(_ context.Context, userID, documentID int64) (map[int][]*model.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int][]*model.Annotation)
	prefix := fmt.Sprintf("%d:%d:", userID, documentID)
	for key, list := range f.pages {
		var u, d, p int64
		if _, err := fmt.Sscanf(key, "%d:%d:%d", &u, &d, &p); err == nil && fmt.Sprintf("%d:%d:", u, d) == prefix {
			out[int(p)] = list
		}
	}
	return out, nil
}

func newHighlight(page int, created time.Time) *model.Annotation {
	src := "some selected text"
	rec := &model.Annotation{
		ID:           uuid.NewString(),
		DocumentID:   1,
		UserID:       7,
		PageNumber:   page,
		Type:         model.AnnotationHighlight.String(),
		GeometryMode: model.GeometryNormalized.String(),
		Color:        model.DefaultColor(model.AnnotationHighlight, model.OriginUser),
		SourceText:   &src,
		Origin:       model.OriginUser.String(),
		CreatedAt:    created,
	}
	_ = rec.SetGeometry(model.GeometryPayload{
		Rects: []geometry.Rect{{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05}},
	})
	return rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStoreAddPersistsAsync(t *testing.T) {
	persister := newFakePersister()
	backup := newFakeBackup()
	store := NewStore(7, 1, persister, backup, time.Hour)
	defer store.Close()

	rec := newHighlight(1, time.Now())
	store.Add(rec)

	// In-memory list is updated synchronously.
	got := store.ListForPage(1)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)

	// Persistence completes in the background and flips the synced flag.
	waitFor(t, func() bool { return persister.savedCount() == 1 })
	waitFor(t, func() bool { return store.UnsyncedCount() == 0 })
}

func TestStoreAddFailureKeepsRecordUnsynced(t *testing.T) {
	persister := newFakePersister()
	persister.setFail(true)
	store := NewStore(7, 1, persister, newFakeBackup(), 20*time.Millisecond)
	defer store.Close()

	store.Add(newHighlight(1, time.Now()))

	// Record stays in memory despite the failed save.
	require.Len(t, store.ListForPage(1), 1)
	assert.Equal(t, 1, store.UnsyncedCount())

	// Once the API recovers, the reconciliation pass syncs it.
	persister.setFail(false)
	waitFor(t, func() bool { return store.UnsyncedCount() == 0 })
	assert.Equal(t, 1, persister.savedCount())
}

func TestStoreRemove(t *testing.T) {
	persister := newFakePersister()
	store := NewStore(7, 1, persister, newFakeBackup(), time.Hour)
	defer store.Close()

	rec := newHighlight(2, time.Now())
	store.Add(rec)

	require.NoError(t, store.Remove(rec.ID))
	assert.Empty(t, store.ListForPage(2))
	waitFor(t, func() bool { return persister.wasDeleted(rec.ID) })

	assert.ErrorIs(t, store.Remove("missing-id"), ErrNotFound)
}

func TestStoreUpdatePatchesContentOnly(t *testing.T) {
	persister := newFakePersister()
	store := NewStore(7, 1, persister, newFakeBackup(), time.Hour)
	defer store.Close()

	rec := newHighlight(1, time.Now())
	originalGeometry := rec.Geometry
	store.Add(rec)

	content := "revised note"
	color := "#112233"
	updated, err := store.Update(rec.ID, UpdatePatch{Content: &content, Color: &color, Tags: []string{"exam"}})
	require.NoError(t, err)
	assert.Equal(t, "revised note", *updated.Content)
	assert.Equal(t, "#112233", updated.Color)
	assert.Equal(t, []string{"exam"}, updated.DecodeTags())

	// Geometry is immutable through Update.
	assert.Equal(t, originalGeometry, updated.Geometry)

	_, err = store.Update("missing-id", UpdatePatch{Content: &content})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreLoadFallsBackToBackup(t *testing.T) {
	persister := newFakePersister()
	backup := newFakeBackup()

	rec := newHighlight(3, time.Now())
	require.NoError(t, backup.WritePage(context.Background(), 7, 1, 3, []*model.Annotation{rec}))

	persister.setFail(true)
	store := NewStore(7, 1, persister, backup, time.Hour)
	defer store.Close()

	require.NoError(t, store.Load(context.Background()))
	got := store.ListForPage(3)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestStoreListOrderAndIsolation(t *testing.T) {
	store := NewStore(7, 1, newFakePersister(), newFakeBackup(), time.Hour)
	defer store.Close()

	base := time.Now()
	first := newHighlight(1, base)
	second := newHighlight(1, base.Add(time.Second))
	store.Add(first)
	store.Add(second)

	got := store.ListForPage(1)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)

	// Mutating the returned slice must not affect the store.
	got[0] = nil
	fresh := store.ListForPage(1)
	assert.Equal(t, first.ID, fresh[0].ID)
}

func TestStoreConcurrentMutations(t *testing.T) {
	store := NewStore(7, 1, newFakePersister(), newFakeBackup(), time.Hour)
	defer store.Close()

	// Rapid accept-all on AI suggestions fires many adds back to back; the
	// full-slice replace must not lose any of them.
	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Add(newHighlight(1, time.Now().Add(time.Duration(i))))
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.ListForPage(1), n)
}
