// Package annotation implements the per-document annotation store, the
// coordinate validator/recovery pass and the hit-tester used by the erase
// tool. In-memory state is authoritative for the open document; persistence
// and the backup mirror are written asynchronously and reconciled by a
// periodic retry pass, so the viewer never blocks on the network.
package annotation

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"pdfreader-backend/internal/model"
)

var (
	ErrNotFound      = errors.New("annotation not found")
	ErrPageImmutable = errors.New("page number is immutable")
)

// Persister is the external annotation API the store writes through.
type Persister interface {
	Save(ctx context.Context, a *model.Annotation) error
	Delete(ctx context.Context, id string) error
	ListByDocument(ctx context.Context, documentID int64) ([]*model.Annotation, error)
}

// Backup mirrors per-page lists to local storage keyed by (user, document),
// so the viewer stays usable when the primary API is unreachable.
type Backup interface {
	WritePage(ctx context.Context, userID, documentID int64, page int, list []*model.Annotation) error
	ReadAll(ctx context.Context, userID, documentID int64) (map[int][]*model.Annotation, error)
}

// DefaultRetryInterval is how often unsynced records are re-persisted.
const DefaultRetryInterval = 30 * time.Second

// UpdatePatch is the set of fields mutable after creation. Geometry and page
// number are deliberately absent.
type UpdatePatch struct {
	Content *string
	Color   *string
	Tags    []string
}

// Store holds one open document's annotations, partitioned by page.
// All mutation goes through its methods; page lists are replaced wholesale on
// every change so concurrent UI handlers never observe partial writes.
type Store struct {
	userID     int64
	documentID int64

	mu    sync.RWMutex
	pages map[int][]*model.Annotation

	persister Persister
	backup    Backup

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates a store for one (user, document) pair and starts the
// reconciliation ticker. Close must be called on document teardown.
func NewStore(userID, documentID int64, persister Persister, backup Backup, retryInterval time.Duration) *Store {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		userID:     userID,
		documentID: documentID,
		pages:      make(map[int][]*model.Annotation),
		persister:  persister,
		backup:     backup,
		ctx:        ctx,
		cancel:     cancel,
	}

	s.wg.Add(1)
	go s.reconcileLoop(retryInterval)
	return s
}

// Load fills the store from the primary API, falling back to the local
// backup mirror when the API is unreachable.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.persister.ListByDocument(ctx, s.documentID)
	if err != nil {
		log.Printf("[Annotation] API load failed for doc %d, trying backup: %v", s.documentID, err)
		byPage, berr := s.backup.ReadAll(ctx, s.userID, s.documentID)
		if berr != nil {
			return err
		}
		s.mu.Lock()
		s.pages = byPage
		s.mu.Unlock()
		return nil
	}

	byPage := make(map[int][]*model.Annotation)
	for _, rec := range records {
		byPage[rec.PageNumber] = append(byPage[rec.PageNumber], rec)
	}
	for page := range byPage {
		sortByCreation(byPage[page])
	}

	s.mu.Lock()
	s.pages = byPage
	s.mu.Unlock()
	return nil
}

// Add appends the record to its page list immediately and persists it in the
// background. On persistence failure the record stays in memory marked
// unsynced and is retried by the reconciliation pass.
func (s *Store) Add(rec *model.Annotation) {
	rec.Synced = false

	s.mu.Lock()
	list := append(clone(s.pages[rec.PageNumber]), rec)
	s.pages[rec.PageNumber] = list
	s.mu.Unlock()

	s.mirrorPage(rec.PageNumber)
	s.persistAsync(rec)
}

// Remove deletes the record from memory immediately and requests deletion
// from the API in the background. Deleting an unknown id returns ErrNotFound.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	var page = -1
	for p, list := range s.pages {
		idx := indexOf(list, id)
		if idx < 0 {
			continue
		}
		next := clone(list)
		next = append(next[:idx], next[idx+1:]...)
		s.pages[p] = next
		page = p
		break
	}
	s.mu.Unlock()

	if page < 0 {
		return ErrNotFound
	}

	s.mirrorPage(page)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		// Server-side delete is idempotent, a missing id is not an error.
		if err := s.persister.Delete(ctx, id); err != nil {
			log.Printf("[Annotation] delete %s failed: %v", id, err)
		}
	}()
	return nil
}

// Update patches mutable fields in place. Geometry is never mutated after
// creation; content edits re-persist the record.
func (s *Store) Update(id string, patch UpdatePatch) (*model.Annotation, error) {
	s.mu.Lock()
	var updated *model.Annotation
	var page int
	for p, list := range s.pages {
		idx := indexOf(list, id)
		if idx < 0 {
			continue
		}
		next := clone(list)
		rec := *next[idx]
		if patch.Content != nil {
			rec.Content = patch.Content
		}
		if patch.Color != nil {
			rec.Color = *patch.Color
		}
		if patch.Tags != nil {
			rec.SetTags(patch.Tags)
		}
		rec.Synced = false
		next[idx] = &rec
		s.pages[p] = next
		updated = &rec
		page = p
		break
	}
	s.mu.Unlock()

	if updated == nil {
		return nil, ErrNotFound
	}

	s.mirrorPage(page)
	s.persistAsync(updated)
	return updated, nil
}

// ListForPage returns the page's records in creation order. The returned
// slice is a copy; callers must not mutate the records directly.
func (s *Store) ListForPage(page int) []*model.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.pages[page])
}

// Get returns a record by id.
func (s *Store) Get(id string) (*model.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, list := range s.pages {
		if idx := indexOf(list, id); idx >= 0 {
			return list[idx], nil
		}
	}
	return nil, ErrNotFound
}

// ReplacePage swaps in a validated page list (recovery pass output).
func (s *Store) ReplacePage(page int, list []*model.Annotation) {
	s.mu.Lock()
	s.pages[page] = clone(list)
	s.mu.Unlock()
	s.mirrorPage(page)
}

// UnsyncedCount reports how many records still await persistence.
func (s *Store) UnsyncedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.pages {
		for _, rec := range list {
			if !rec.Synced {
				n++
			}
		}
	}
	return n
}

// Close stops background work and cancels in-flight persistence calls.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

// persistAsync writes the record to the API without blocking the caller.
func (s *Store) persistAsync(rec *model.Annotation) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if err := s.persister.Save(ctx, rec); err != nil {
			log.Printf("[Annotation] save %s failed, will retry: %v", rec.ID, err)
			return
		}
		s.markSynced(rec.ID)
	}()
}

func (s *Store) markSynced(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, list := range s.pages {
		idx := indexOf(list, id)
		if idx < 0 {
			continue
		}
		next := clone(list)
		rec := *next[idx]
		rec.Synced = true
		next[idx] = &rec
		s.pages[p] = next
		return
	}
}

// reconcileLoop periodically retries persistence of unsynced records.
func (s *Store) reconcileLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.retryUnsynced()
		}
	}
}

func (s *Store) retryUnsynced() {
	s.mu.RLock()
	var pending []*model.Annotation
	for _, list := range s.pages {
		for _, rec := range list {
			if !rec.Synced {
				pending = append(pending, rec)
			}
		}
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return
	}
	log.Printf("[Annotation] retrying %d unsynced record(s) for doc %d", len(pending), s.documentID)
	for _, rec := range pending {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		err := s.persister.Save(ctx, rec)
		cancel()
		if err != nil {
			continue
		}
		s.markSynced(rec.ID)
	}
}

// mirrorPage writes the page list to the local backup. Best effort; backup
// failures never surface to the caller.
func (s *Store) mirrorPage(page int) {
	s.mu.RLock()
	list := clone(s.pages[page])
	s.mu.RUnlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		if err := s.backup.WritePage(ctx, s.userID, s.documentID, page, list); err != nil {
			log.Printf("[Annotation] backup mirror failed for doc %d page %d: %v", s.documentID, page, err)
		}
	}()
}

func indexOf(list []*model.Annotation, id string) int {
	for i, rec := range list {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func clone(list []*model.Annotation) []*model.Annotation {
	out := make([]*model.Annotation, len(list))
	copy(out, list)
	return out
}

func sortByCreation(list []*model.Annotation) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// NoopBackup is used when no local mirror is configured. Writes are dropped
// and reads fail, so Load surfaces the primary API error instead of silently
// starting empty.
type NoopBackup struct{}

func (NoopBackup) WritePage(context.Context, int64, int64, int, []*model.Annotation) error {
	return nil
}

func (NoopBackup) ReadAll(context.Context, int64, int64) (map[int][]*model.Annotation, error) {
	return nil, errors.New("no backup configured")
}
