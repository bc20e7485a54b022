package jobs

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/storage"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 10 * time.Minute

// SweepTask deletes blobs that no file row references. Blobs younger than the
// grace period are kept since their row may not be committed yet.
type SweepTask struct {
	store store.Store
	blobs storage.Store
	grace time.Duration
	cron  string
	now   func() time.Time
}

func NewSweepTask(schedule string, grace time.Duration, s store.Store, blobs storage.Store) *SweepTask {
	return &SweepTask{
		store: s,
		blobs: blobs,
		grace: grace,
		cron:  schedule,
		now:   time.Now,
	}
}

func (s *SweepTask) Name() string {
	return "orphan_sweep"
}

func (s *SweepTask) Schedule() string {
	return s.cron
}

func (s *SweepTask) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.Sweep(ctx)
	if err != nil {
		logrus.Warnf("orphan sweep: %v", err)
		return
	}
	if removed > 0 {
		logrus.Infof("orphan sweep removed %d blobs", removed)
	}
}

// Sweep removes unreferenced blobs and returns how many were deleted.
func (s *SweepTask) Sweep(ctx context.Context) (int, error) {
	blobs, err := s.blobs.List(ctx, "")
	if err != nil {
		return 0, err
	}

	keys, err := s.store.ListStorageKeys(ctx)
	if err != nil {
		return 0, err
	}
	referenced := mapset.NewThreadUnsafeSet(keys...)

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, blob := range blobs {
		if referenced.Contains(blob.Key) || blob.LastModified.After(cutoff) {
			continue
		}
		if err := s.blobs.Delete(ctx, blob.Key); err != nil {
			logrus.Warnf("delete orphan blob %s: %v", blob.Key, err)
			continue
		}
		removed++
	}
	metrics.OrphansSwept.Add(float64(removed))

	return removed, nil
}
