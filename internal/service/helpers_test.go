package service

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/emrgen/plm/internal/cache"
	"github.com/emrgen/plm/internal/compress"
	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/queue"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/storage"
	"github.com/emrgen/plm/internal/store"
	"github.com/emrgen/plm/internal/tester"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testAccount = registry.Account{Facility: "Milano", Group: "Ufficio Tecnico", Name: "mrossi"}

type fixture struct {
	db        *gorm.DB
	store     store.Store
	blobs     *storage.Memory
	published *queue.Memory
	cache     *cache.Memory
	parts     *PartService
	revisions *RevisionService
	bom       *BomService
	accounts  *AccountService
	activity  *ActivityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return newFixtureWith(t, func(s store.Store) store.Store { return s })
}

// newFixtureWith builds the services over the store returned by wrap.
func newFixtureWith(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()

	db := tester.NewDB(t)
	s := wrap(store.NewGormStore(db))
	reg := tester.NewRegistry(t)
	blobs := storage.NewMemory()
	published := queue.NewMemory()
	components := cache.NewMemory()

	files := NewFileStore(blobs, compress.NewGZip())
	activity := NewActivityService(s, published)
	revisions := NewRevisionService(s, reg, files, activity, true)

	return &fixture{
		db:        db,
		store:     s,
		blobs:     blobs,
		published: published,
		cache:     components,
		parts:     NewPartService(s, revisions, files, activity),
		revisions: revisions,
		bom:       NewBomService(s, components, activity),
		accounts:  NewAccountService(s, tester.NewDirectory(t), reg),
		activity:  activity,
	}
}

func (f *fixture) createPart(t *testing.T, codeType string, release bool) *model.Part {
	t.Helper()

	part, err := f.parts.CreatePart(context.Background(), testAccount, CreatePartInput{
		Type:        codeType,
		Description: "part " + codeType,
		Quantity:    1,
		Location:    "A1",
		ReleaseNow:  release,
	})
	require.NoError(t, err)

	return part
}

func upload(name, content string) Upload {
	return Upload{Filename: name, Mimetype: "text/plain", Content: strings.NewReader(content)}
}

func intPtr(v int) *int {
	return &v
}

// staleStore serves outdated reads inside transactions to force the
// duplicate key path of concurrent writers.
type staleStore struct {
	store.Store
	staleCodes     *atomic.Int32
	staleRevisions *atomic.Int32
}

func newStaleStore(codes, revisions int32) func(store.Store) store.Store {
	return func(s store.Store) store.Store {
		stale := &staleStore{Store: s, staleCodes: &atomic.Int32{}, staleRevisions: &atomic.Int32{}}
		stale.staleCodes.Store(codes)
		stale.staleRevisions.Store(revisions)
		return stale
	}
}

func (s *staleStore) Transaction(ctx context.Context, f func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return f(&staleStore{Store: tx, staleCodes: s.staleCodes, staleRevisions: s.staleRevisions})
	})
}

// ListAllCodes hides the greatest code while stale reads remain.
func (s *staleStore) ListAllCodes(ctx context.Context) ([]string, error) {
	codes, err := s.Store.ListAllCodes(ctx)
	if err != nil || len(codes) == 0 || s.staleCodes.Add(-1) < 0 {
		return codes, err
	}
	sort.Strings(codes)

	return codes[:len(codes)-1], nil
}

// ListRevisions reports no revisions while stale reads remain.
func (s *staleStore) ListRevisions(ctx context.Context, partID uint) ([]*model.Revision, error) {
	revs, err := s.Store.ListRevisions(ctx, partID)
	if err != nil || len(revs) == 0 || s.staleRevisions.Add(-1) < 0 {
		return revs, err
	}

	return nil, nil
}
