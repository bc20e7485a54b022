package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
)

// CreatePartInput describes a new part. Type is the two digit code prefix.
type CreatePartInput struct {
	Type        string
	Description string
	Quantity    float64
	Location    string
	State       string
	ReleaseNow  bool
}

// NewPartService creates a new PartService.
func NewPartService(store store.Store, revisions *RevisionService, files *FileStore, activity *ActivityService) *PartService {
	return &PartService{
		store:     store,
		revisions: revisions,
		files:     files,
		activity:  activity,
	}
}

// PartService manages the part catalog.
type PartService struct {
	store     store.Store
	revisions *RevisionService
	files     *FileStore
	activity  *ActivityService
}

// CreatePart generates the next code and inserts the part with its revision 0
// in one transaction. A duplicate code from a concurrent insert restarts the
// transaction with a fresh scan.
func (p *PartService) CreatePart(ctx context.Context, acc registry.Account, in CreatePartInput) (*model.Part, error) {
	codeType, err := ValidateType(in.Type)
	if err != nil {
		return nil, err
	}
	state, err := p.revisions.ResolveState(p.revisions.Registry().Snapshot(), in.State)
	if err != nil {
		return nil, err
	}

	var part *model.Part
	var activity *model.ActivityLog
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = p.store.Transaction(ctx, func(tx store.Store) error {
			codes, err := tx.ListAllCodes(ctx)
			if err != nil {
				return err
			}
			code, err := NextCode(codeType, codes)
			if err != nil {
				return err
			}

			part = &model.Part{
				Code:        code,
				Description: strings.TrimSpace(in.Description),
				Quantity:    in.Quantity,
				Location:    strings.TrimSpace(in.Location),
			}
			if err := tx.CreatePart(ctx, part); err != nil {
				return err
			}

			rev := &model.Revision{PartID: part.ID, Index: 0, State: state.Name}
			if in.ReleaseNow {
				now := time.Now().UTC()
				rev.IsReleased = true
				rev.ReleasedAt = &now
			}
			if err := tx.CreateRevision(ctx, rev); err != nil {
				return err
			}
			part.Revisions = []*model.Revision{rev}

			activity, err = p.activity.record(ctx, tx, acc, ActionPartCreated, code, part.Description)
			return err
		})
		if !errors.Is(err, store.ErrDuplicateKey) {
			break
		}
		metrics.CodeRetries.Inc()
		logrus.Debugf("code generation for type %s lost a race, retrying", codeType)
	}
	if err != nil {
		return nil, err
	}

	metrics.CodesCreated.WithLabelValues(codeType).Inc()
	if in.ReleaseNow {
		metrics.RevisionsReleased.Inc()
	}
	p.activity.publish(ctx, activity)
	logrus.Infof("part %s created by %s", part.Code, acc.Name)

	return part, nil
}

// ListParts returns parts ordered by code. Parts without a released revision
// are included only on request.
func (p *PartService) ListParts(ctx context.Context, includeUnreleased bool) ([]*model.Part, error) {
	return p.store.ListParts(ctx, includeUnreleased)
}

// GetPart returns a part with its revisions, certification, and files. Without
// includeUnreleased a part with no released revision is reported as not found.
func (p *PartService) GetPart(ctx context.Context, code string, includeUnreleased bool) (*model.Part, error) {
	part, err := p.EnsureInitialRevision(ctx, code)
	if err != nil {
		return nil, err
	}
	if !includeUnreleased && !part.HasReleasedRevision() {
		return nil, ErrPartNotFound
	}

	return part, nil
}

// EnsureInitialRevision is the lazy initialization step of the query path: a
// part without revisions gets revision 0 in the first registry state. It is
// idempotent and returns the part detail.
//
// The insert runs outside a transaction and writes no activity row, since the
// caller is a read with no account. A concurrent insert of the same revision is
// absorbed by the (part, index) unique index.
func (p *PartService) EnsureInitialRevision(ctx context.Context, code string) (*model.Part, error) {
	part, err := p.store.GetPartDetail(ctx, strings.TrimSpace(code))
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrPartNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(part.Revisions) > 0 {
		return part, nil
	}

	state := p.revisions.Registry().Snapshot().DefaultState()
	err = p.store.CreateRevision(ctx, &model.Revision{PartID: part.ID, Index: 0, State: state.Name})
	if err != nil && !errors.Is(err, store.ErrDuplicateKey) {
		return nil, err
	}
	if err == nil {
		logrus.Infof("initial revision created for %s", part.Code)
	}

	return p.store.GetPartDetail(ctx, part.Code)
}

// UploadPartFile attaches a file to the flat file list of a part.
func (p *PartService) UploadPartFile(ctx context.Context, acc registry.Account, code, description string, upload Upload) (*model.PartFile, error) {
	if upload.Content == nil {
		return nil, ErrNoFiles
	}

	var file *model.PartFile
	var activity *model.ActivityLog
	err := p.store.Transaction(ctx, func(tx store.Store) error {
		part, err := getPart(ctx, tx, code)
		if err != nil {
			return err
		}

		stored := storedName(upload.Filename)
		key := partKey(part.Code, stored)
		size, err := p.files.write(ctx, key, upload.Content)
		if err != nil {
			return fmt.Errorf("store file %q: %w", upload.Filename, err)
		}

		file = &model.PartFile{
			PartID:      part.ID,
			StoredName:  stored,
			Filename:    baseName(upload.Filename),
			Description: strings.TrimSpace(description),
			StorageKey:  key,
			Filetype:    upload.Mimetype,
			Size:        size,
			Compression: p.files.Encoding(),
			UploadedAt:  time.Now().UTC(),
		}
		if err := tx.CreatePartFile(ctx, file); err != nil {
			return err
		}

		activity, err = p.activity.record(ctx, tx, acc, ActionPartFileUploaded, part.Code, file.Filename)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.activity.publish(ctx, activity)

	return file, nil
}

// ListPartFiles returns the flat file list of a part.
func (p *PartService) ListPartFiles(ctx context.Context, code string) ([]*model.PartFile, error) {
	part, err := getPart(ctx, p.store, code)
	if err != nil {
		return nil, err
	}

	return p.store.ListPartFiles(ctx, part.ID)
}
