package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/storage"
	"github.com/emrgen/plm/internal/store"
	"github.com/emrgen/plm/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingJob) Name() string     { return "blocking" }
func (b *blockingJob) Schedule() string { return "@every 1h" }
func (b *blockingJob) Run() {
	close(b.started)
	<-b.release
}

func TestTaskExecutor_SkipsOverlappingRuns(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	executor := NewTaskExecutor(job)

	done := make(chan bool)
	go func() { done <- executor.runOnce(job) }()
	<-job.started

	assert.False(t, executor.runOnce(job))

	close(job.release)
	assert.True(t, <-done)
	assert.False(t, executor.running.Contains(job.Name()))
}

type scheduledJob struct {
	schedule string
}

func (s scheduledJob) Name() string     { return "scheduled" }
func (s scheduledJob) Schedule() string { return s.schedule }
func (s scheduledJob) Run()             {}

func TestTaskExecutor_Start(t *testing.T) {
	executor := NewTaskExecutor(scheduledJob{schedule: "@every 1h"}, scheduledJob{})
	require.NoError(t, executor.Start())
	executor.Stop()

	assert.Error(t, NewTaskExecutor(scheduledJob{schedule: "not a schedule"}).Start())
}

func TestReloadTask(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.New(dir)
	require.NoError(t, err)
	directory, err := registry.NewDirectory(filepath.Join(dir, registry.AccountsFile))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, registry.StatesFile), []byte("bozza,#000000\nattivo,#ffffff\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, registry.AccountsFile), []byte("stabilimento,gruppo,account\nMilano,Qualita,averdi\n"), 0o644))

	NewReloadTask("@every 1s", reg, directory).Run()

	assert.Equal(t, "bozza", reg.Snapshot().DefaultState().Name)
	_, ok := directory.Find("averdi", "Milano", "Qualita")
	assert.True(t, ok)
}

func TestSweepTask(t *testing.T) {
	ctx := context.Background()
	db := tester.NewDB(t)
	s := store.NewGormStore(db)
	blobs := storage.NewMemory()

	part := &model.Part{Code: "03000001Y"}
	require.NoError(t, s.CreatePart(ctx, part))
	require.NoError(t, s.CreatePartFile(ctx, &model.PartFile{
		PartID:     part.ID,
		StoredName: "kept_a.txt",
		Filename:   "a.txt",
		StorageKey: "parts/03000001Y/kept_a.txt",
	}))

	for _, key := range []string{"parts/03000001Y/kept_a.txt", "revisions/1/orphan_b.txt"} {
		_, err := blobs.Put(ctx, key, strings.NewReader("x"))
		require.NoError(t, err)
	}

	task := NewSweepTask("@every 1h", time.Hour, s, blobs)

	removed, err := task.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "young blobs are kept")

	task.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	removed, err = task.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	infos, err := blobs.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "parts/03000001Y/kept_a.txt", infos[0].Key)
}
