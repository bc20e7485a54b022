package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.parts.CreatePart(ctx, testAccount, CreatePartInput{Type: "3"})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = f.parts.CreatePart(ctx, testAccount, CreatePartInput{Type: "03", State: "unknown"})
	assert.ErrorIs(t, err, ErrInvalidState)

	first, err := f.parts.CreatePart(ctx, testAccount, CreatePartInput{
		Type:        "03",
		Description: "  staffa  ",
		Quantity:    12.5,
		Location:    " B3 ",
		State:       "prototipo",
		ReleaseNow:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "03000001Y", first.Code)
	assert.Equal(t, "staffa", first.Description)
	assert.Equal(t, "B3", first.Location)
	require.Len(t, first.Revisions, 1)
	assert.Equal(t, "prototipo", first.Revisions[0].State)
	assert.True(t, first.Revisions[0].IsReleased)

	second := f.createPart(t, "10", false)
	assert.Equal(t, "10000002", second.Code[:8])
	assert.Equal(t, Checksum("10000002"), second.Code[8])

	published := f.published.Published()
	require.Len(t, published, 2)
	assert.Equal(t, ActionPartCreated, published[0].Action)
	assert.Equal(t, first.Code, published[0].Reference)
}

func TestCreatePart_SkipsDeletedCodes(t *testing.T) {
	f := newFixture(t)
	part := f.createPart(t, "03", false)

	require.NoError(t, f.db.Delete(&model.Part{}, part.ID).Error)

	next := f.createPart(t, "03", false)
	assert.Equal(t, "03000002", next.Code[:8])
}

func TestCreatePart_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	codes := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			part, err := f.parts.CreatePart(ctx, testAccount, CreatePartInput{Type: "08"})
			if err != nil {
				errs <- err
				return
			}
			codes <- part.Code
		}()
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	var created []string
	for code := range codes {
		created = append(created, code)
	}
	require.Len(t, created, workers)
	sort.Strings(created)
	for i, code := range created {
		assert.Equal(t, fmt.Sprintf("08%06d", i+1), code[:8])
		assert.Equal(t, Checksum(code[:8]), code[8])
	}

	stored, err := f.store.ListAllCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, mapset.NewSet(stored...).Cardinality())
}

func TestCreatePart_RetriesDuplicateCode(t *testing.T) {
	f := newFixtureWith(t, newStaleStore(1, 0))
	ctx := context.Background()

	first := f.createPart(t, "03", false)
	assert.Equal(t, "03000001", first.Code[:8])

	retries := testutil.ToFloat64(metrics.CodeRetries)
	second := f.createPart(t, "03", false)
	assert.Equal(t, "03000002", second.Code[:8])
	assert.Equal(t, retries+1, testutil.ToFloat64(metrics.CodeRetries))

	parts, err := f.parts.ListParts(ctx, true)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	// the failed attempt rolled back with its activity row
	activities, err := f.activity.ListActivities(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, activities, 2)
}

func TestListParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	released := f.createPart(t, "03", true)
	open := f.createPart(t, "03", false)

	parts, err := f.parts.ListParts(ctx, false)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, released.Code, parts[0].Code)

	parts, err = f.parts.ListParts(ctx, true)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, open.Code, parts[1].Code)
}

func TestGetPart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.createPart(t, "03", false)

	_, err := f.parts.GetPart(ctx, open.Code, false)
	assert.ErrorIs(t, err, ErrPartNotFound)

	part, err := f.parts.GetPart(ctx, open.Code, true)
	require.NoError(t, err)
	require.Len(t, part.Revisions, 1)

	_, err = f.parts.GetPart(ctx, "nope", true)
	assert.ErrorIs(t, err, ErrPartNotFound)
}

func TestEnsureInitialRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a part inserted without going through CreatePart
	legacy := &model.Part{Code: "01000001A", Description: "legacy"}
	require.NoError(t, f.store.CreatePart(ctx, legacy))

	part, err := f.parts.EnsureInitialRevision(ctx, legacy.Code)
	require.NoError(t, err)
	require.Len(t, part.Revisions, 1)
	assert.Equal(t, 0, part.Revisions[0].Index)
	assert.Equal(t, "concept", part.Revisions[0].State)

	part, err = f.parts.EnsureInitialRevision(ctx, legacy.Code)
	require.NoError(t, err)
	assert.Len(t, part.Revisions, 1)

	// read path initialization is not audited
	activities, err := f.activity.ListActivities(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestPartFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	part := f.createPart(t, "03", true)

	file, err := f.parts.UploadPartFile(ctx, testAccount, part.Code, " scheda ", Upload{
		Filename: "datasheet.pdf",
		Mimetype: "application/pdf",
		Content:  strings.NewReader("pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, "scheda", file.Description)
	assert.True(t, strings.HasPrefix(file.StorageKey, "parts/"+part.Code+"/"))

	_, err = f.parts.UploadPartFile(ctx, testAccount, "missing", "", upload("x.txt", "x"))
	assert.ErrorIs(t, err, ErrPartNotFound)

	files, err := f.parts.ListPartFiles(ctx, part.Code)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "datasheet.pdf", files[0].Filename)
	assert.Equal(t, "application/pdf", files[0].Filetype)
}
