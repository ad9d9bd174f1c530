package annotation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfreader-backend/internal/model"
)

// slowPersister delays ListByDocument to widen the load window.
type slowPersister struct {
	*fakePersister
	delay time.Duration
}

func (s *slowPersister) ListByDocument(ctx context.Context, documentID int64) ([]*model.Annotation, error) {
	time.Sleep(s.delay)
	return s.fakePersister.ListByDocument(ctx, documentID)
}

func newTestManager(persister Persister, backup Backup) *Manager {
	return NewManager(func(userID, documentID int64) *Store {
		return NewStore(userID, documentID, persister, backup, time.Hour)
	})
}

func TestManagerGetReturnsSameStore(t *testing.T) {
	m := newTestManager(newFakePersister(), newFakeBackup())
	defer m.CloseAll()

	a, err := m.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	b, err := m.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := m.Get(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestManagerConcurrentGetWaitsForLoad(t *testing.T) {
	persister := newFakePersister()
	rec := newHighlight(1, time.Now())
	persister.saved[rec.ID] = rec

	slow := &slowPersister{fakePersister: persister, delay: 200 * time.Millisecond}
	m := newTestManager(slow, newFakeBackup())
	defer m.CloseAll()

	// Two tabs opening the same document at once: both must see the loaded
	// list, never an empty store mid-load.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := m.Get(context.Background(), 7, 1)
			if assert.NoError(t, err) {
				assert.Len(t, store.ListForPage(1), 1)
			}
		}()
	}
	wg.Wait()
}

func TestManagerConcurrentGetLoadFailure(t *testing.T) {
	persister := newFakePersister()
	persister.setFail(true)

	slow := &slowPersister{fakePersister: persister, delay: 100 * time.Millisecond}
	m := newTestManager(slow, NoopBackup{})
	defer m.CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Get(context.Background(), 7, 1)
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	// A failed load is forgotten; the next Get retries and succeeds once the
	// API is back.
	persister.setFail(false)
	store, err := m.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestManagerDrop(t *testing.T) {
	m := newTestManager(newFakePersister(), newFakeBackup())

	a, err := m.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	m.Drop(7, 1)

	b, err := m.Get(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	// Dropping an unknown pair is a no-op.
	m.Drop(99, 99)
	m.CloseAll()
}
