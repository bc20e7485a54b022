package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/storage"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
)

// maxWriteAttempts bounds the retries of transactions that lost a unique index race.
const maxWriteAttempts = 5

// CreateRevisionInput describes a new revision. A nil Index selects max+1.
type CreateRevisionInput struct {
	Code    string
	Index   *int
	State   string
	CadFile *string
}

// CertificationInput is one field of a certification save. A nil Order falls
// back to the field position.
type CertificationInput struct {
	Name  string
	Value string
	Order *int
}

// CertificationEntry is one field of the merged certification view.
type CertificationEntry struct {
	Name  string `json:"nome"`
	Label string `json:"label"`
	Value string `json:"valore"`
	Order int    `json:"ordine"`
}

// NewRevisionService creates a new RevisionService. With strictStates unknown
// state names are rejected instead of resolving to the first registry state.
func NewRevisionService(store store.Store, registry *registry.Registry, files *FileStore, activity *ActivityService, strictStates bool) *RevisionService {
	return &RevisionService{
		store:        store,
		registry:     registry,
		files:        files,
		activity:     activity,
		strictStates: strictStates,
	}
}

// RevisionService enforces the revision lifecycle: one open revision per part,
// monotonic states, immutability after release.
type RevisionService struct {
	store        store.Store
	registry     *registry.Registry
	files        *FileStore
	activity     *ActivityService
	strictStates bool
}

// Registry returns the configuration registry the service resolves states against.
func (r *RevisionService) Registry() *registry.Registry {
	return r.registry
}

// ResolveState matches name against the registry. An empty name is the first state.
func (r *RevisionService) ResolveState(snap *registry.Snapshot, name string) (registry.State, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return snap.DefaultState(), nil
	}
	if state, ok := snap.LookupState(name); ok {
		return state, nil
	}
	if r.strictStates {
		return registry.State{}, fmt.Errorf("%w: %q", ErrInvalidState, name)
	}

	return snap.DefaultState(), nil
}

// CreateRevision opens a new revision of a part, cloning certification, CAD
// reference, and files from the closest lower index.
func (r *RevisionService) CreateRevision(ctx context.Context, acc registry.Account, in CreateRevisionInput) (*model.Revision, error) {
	if in.Index != nil && *in.Index < 0 {
		return nil, ErrInvalidIndex
	}
	state, err := r.ResolveState(r.registry.Snapshot(), in.State)
	if err != nil {
		return nil, err
	}

	var rev *model.Revision
	var activity *model.ActivityLog
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = r.store.Transaction(ctx, func(tx store.Store) error {
			part, err := getPart(ctx, tx, in.Code)
			if err != nil {
				return err
			}

			revs, err := tx.ListRevisions(ctx, part.ID)
			if err != nil {
				return err
			}

			index, err := nextRevisionIndex(revs, in.Index)
			if err != nil {
				return err
			}

			rev = &model.Revision{
				PartID:  part.ID,
				Index:   index,
				State:   state.Name,
				CadFile: in.CadFile,
			}
			if err := tx.CreateRevision(ctx, rev); err != nil {
				return err
			}

			if err := r.cloneFromPrevious(ctx, tx, rev); err != nil {
				return err
			}

			activity, err = r.activity.record(ctx, tx, acc, ActionRevisionCreated, revisionRef(part.Code, index), "")
			return err
		})
		if !errors.Is(err, store.ErrDuplicateKey) {
			break
		}
		logrus.Debugf("revision create for %s lost a race, retrying", in.Code)
	}
	if err != nil {
		return nil, err
	}

	metrics.RevisionsCreated.Inc()
	r.activity.publish(ctx, activity)
	logrus.Infof("revision %s created by %s", activity.Reference, acc.Name)

	return rev, nil
}

// nextRevisionIndex rejects a second open revision and picks or validates the index.
func nextRevisionIndex(revs []*model.Revision, requested *int) (int, error) {
	next := 0
	taken := make(map[int]bool, len(revs))
	for _, rev := range revs {
		if !rev.IsReleased {
			return 0, ErrOpenRevisionExists
		}
		taken[rev.Index] = true
		next = max(next, rev.Index+1)
	}

	if requested == nil {
		return next, nil
	}
	if taken[*requested] {
		return 0, fmt.Errorf("%w: rev%d", ErrDuplicateIndex, *requested)
	}

	return *requested, nil
}

// cloneFromPrevious copies the previous revision's certification, CAD file, and
// files into rev. File contents are duplicated under rev's own storage prefix.
func (r *RevisionService) cloneFromPrevious(ctx context.Context, tx store.Store, rev *model.Revision) error {
	prev, err := tx.GetPreviousRevision(ctx, rev.PartID, rev.Index)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(prev.Certification) > 0 {
		fields := make([]*model.CertificationField, 0, len(prev.Certification))
		for _, field := range prev.Certification {
			fields = append(fields, &model.CertificationField{Name: field.Name, Value: field.Value, Order: field.Order})
		}
		if err := tx.ReplaceCertification(ctx, rev.ID, fields); err != nil {
			return err
		}
		rev.Certification = fields
	}

	if prev.CadFile != nil && rev.CadFile == nil {
		cad := *prev.CadFile
		rev.CadFile = &cad
		if err := tx.UpdateRevision(ctx, rev); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, file := range prev.Files {
		stored := storedName(file.Filename)
		key := revisionKey(rev.ID, stored)
		err := r.files.copy(ctx, file.StorageKey, key)
		if errors.Is(err, storage.ErrNotFound) {
			// the source blob is gone: keep pointing at the old key
			logrus.Warnf("clone %s: blob %s missing", file.Filename, file.StorageKey)
			key = file.StorageKey
		} else if err != nil {
			return fmt.Errorf("copy file %q: %w", file.Filename, err)
		}

		clone := &model.RevisionFile{
			RevisionID:  rev.ID,
			StoredName:  stored,
			Filename:    file.Filename,
			StorageKey:  key,
			Mimetype:    file.Mimetype,
			Size:        file.Size,
			Compression: file.Compression,
			UploadedAt:  now,
		}
		if err := tx.CreateRevisionFile(ctx, clone); err != nil {
			return err
		}
		rev.Files = append(rev.Files, clone)
	}

	return nil
}

// ListRevisions returns the revisions of a part ordered by index.
func (r *RevisionService) ListRevisions(ctx context.Context, code string) ([]*model.Revision, error) {
	part, err := getPart(ctx, r.store, code)
	if err != nil {
		return nil, err
	}

	return r.store.ListRevisions(ctx, part.ID)
}

// GetRevision returns one revision with certification and files.
func (r *RevisionService) GetRevision(ctx context.Context, code string, index int) (*model.Revision, error) {
	return getRevision(ctx, r.store, code, index)
}

// ReleaseRevision marks a revision released. Released revisions are immutable.
func (r *RevisionService) ReleaseRevision(ctx context.Context, acc registry.Account, code string, index int) (*model.Revision, error) {
	var rev *model.Revision
	var activity *model.ActivityLog
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		rev, err = getRevision(ctx, tx, code, index)
		if err != nil {
			return err
		}
		if rev.IsReleased {
			return ErrAlreadyReleased
		}

		now := time.Now().UTC()
		rev.IsReleased = true
		rev.ReleasedAt = &now
		if err := tx.UpdateRevision(ctx, rev); err != nil {
			return err
		}

		activity, err = r.activity.record(ctx, tx, acc, ActionRevisionReleased, revisionRef(code, index), "")
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RevisionsReleased.Inc()
	r.activity.publish(ctx, activity)
	logrus.Infof("revision %s released by %s", activity.Reference, acc.Name)

	return rev, nil
}

// ChangeState moves an open revision to a state at or after its current one.
func (r *RevisionService) ChangeState(ctx context.Context, acc registry.Account, code string, index int, stateName string) (*model.Revision, error) {
	snap := r.registry.Snapshot()

	var rev *model.Revision
	var activity *model.ActivityLog
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		rev, err = getRevision(ctx, tx, code, index)
		if err != nil {
			return err
		}
		if rev.IsReleased {
			return ErrAlreadyReleased
		}

		target, err := r.ResolveState(snap, stateName)
		if err != nil {
			return err
		}
		next, ok := snap.StateOrder(target.Name)
		if !ok {
			return ErrInvalidState
		}
		if current, ok := snap.StateOrder(rev.State); ok && next < current {
			return fmt.Errorf("%w: %s -> %s", ErrStateRegression, rev.State, target.Name)
		}

		rev.State = target.Name
		if err := tx.UpdateRevision(ctx, rev); err != nil {
			return err
		}

		activity, err = r.activity.record(ctx, tx, acc, ActionRevisionState, revisionRef(code, index), target.Name)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.activity.publish(ctx, activity)

	return rev, nil
}

// SaveCertification replaces the certification fields of an open revision and
// returns the merged view. Blank names are skipped; repeated names keep the first.
func (r *RevisionService) SaveCertification(ctx context.Context, acc registry.Account, code string, index int, fields []CertificationInput) ([]CertificationEntry, error) {
	var activity *model.ActivityLog
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		rev, err := getRevision(ctx, tx, code, index)
		if err != nil {
			return err
		}
		if rev.IsReleased {
			return ErrAlreadyReleased
		}

		seen := make(map[string]bool, len(fields))
		stored := make([]*model.CertificationField, 0, len(fields))
		for pos, field := range fields {
			name := strings.TrimSpace(field.Name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true

			order := pos
			if field.Order != nil {
				order = *field.Order
			}
			stored = append(stored, &model.CertificationField{
				Name:  name,
				Value: strings.TrimSpace(field.Value),
				Order: order,
			})
		}

		if err := tx.ReplaceCertification(ctx, rev.ID, stored); err != nil {
			return err
		}

		activity, err = r.activity.record(ctx, tx, acc, ActionCertificationSaved, revisionRef(code, index), "")
		return err
	})
	if err != nil {
		return nil, err
	}

	r.activity.publish(ctx, activity)

	return r.Certification(ctx, code, index)
}

// Certification merges the form schema with the stored fields: every schema
// field in registry order, then the extra stored fields by stored order.
func (r *RevisionService) Certification(ctx context.Context, code string, index int) ([]CertificationEntry, error) {
	rev, err := getRevision(ctx, r.store, code, index)
	if err != nil {
		return nil, err
	}

	return MergeCertification(r.registry.Snapshot().Fields, rev.Certification), nil
}

// MergeCertification builds the certification view; names match case-insensitively.
func MergeCertification(schema []registry.FormField, stored []*model.CertificationField) []CertificationEntry {
	existing := make(map[string]*model.CertificationField, len(stored))
	for _, field := range stored {
		key := strings.ToLower(field.Name)
		if _, ok := existing[key]; !ok {
			existing[key] = field
		}
	}

	used := make(map[string]bool, len(schema))
	entries := make([]CertificationEntry, 0, len(schema)+len(stored))
	for _, field := range schema {
		key := strings.ToLower(field.Name)
		if used[key] {
			continue
		}
		used[key] = true

		entry := CertificationEntry{Name: field.Name, Label: field.Label, Order: field.Order}
		if value, ok := existing[key]; ok {
			entry.Value = value.Value
		}
		entries = append(entries, entry)
	}

	extras := make([]*model.CertificationField, 0, len(stored))
	for _, field := range stored {
		key := strings.ToLower(field.Name)
		if used[key] {
			continue
		}
		used[key] = true
		extras = append(extras, field)
	}
	sort.SliceStable(extras, func(i, j int) bool { return extras[i].Order < extras[j].Order })

	for _, field := range extras {
		entries = append(entries, CertificationEntry{
			Name:  field.Name,
			Label: registry.TitleLabel(field.Name),
			Value: field.Value,
			Order: field.Order,
		})
	}

	return entries
}

// UploadFiles stores a batch of files on an open revision. Each blob is written
// before its row and the rows commit together; a storage failure aborts the
// batch naming the file.
func (r *RevisionService) UploadFiles(ctx context.Context, acc registry.Account, code string, index int, uploads []Upload) ([]*model.RevisionFile, error) {
	var activity *model.ActivityLog
	var revisionID uint
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		rev, err := getRevision(ctx, tx, code, index)
		if err != nil {
			return err
		}
		if rev.IsReleased {
			return ErrAlreadyReleased
		}
		if len(uploads) == 0 {
			return ErrNoFiles
		}
		revisionID = rev.ID

		for _, upload := range uploads {
			stored := storedName(upload.Filename)
			key := revisionKey(rev.ID, stored)
			size, err := r.files.write(ctx, key, upload.Content)
			if err != nil {
				return fmt.Errorf("store file %q: %w", upload.Filename, err)
			}

			file := &model.RevisionFile{
				RevisionID:  rev.ID,
				StoredName:  stored,
				Filename:    baseName(upload.Filename),
				StorageKey:  key,
				Mimetype:    upload.Mimetype,
				Size:        size,
				Compression: r.files.Encoding(),
				UploadedAt:  time.Now().UTC(),
			}
			if err := tx.CreateRevisionFile(ctx, file); err != nil {
				return err
			}
		}

		activity, err = r.activity.record(ctx, tx, acc, ActionRevisionFiles, revisionRef(code, index), fmt.Sprintf("%d file", len(uploads)))
		return err
	})
	if err != nil {
		return nil, err
	}

	r.activity.publish(ctx, activity)
	logrus.Infof("%d files uploaded to %s (revision id %d)", len(uploads), revisionRef(code, index), revisionID)

	return r.ListFiles(ctx, code, index)
}

// ListFiles returns the files of a revision in upload order.
func (r *RevisionService) ListFiles(ctx context.Context, code string, index int) ([]*model.RevisionFile, error) {
	rev, err := getRevision(ctx, r.store, code, index)
	if err != nil {
		return nil, err
	}

	return rev.Files, nil
}

// OpenFile returns the metadata and decoded content of a revision file.
func (r *RevisionService) OpenFile(ctx context.Context, code string, index int, stored string) (*model.RevisionFile, []byte, error) {
	rev, err := getRevision(ctx, r.store, code, index)
	if err != nil {
		return nil, nil, err
	}

	file, err := r.store.GetRevisionFile(ctx, rev.ID, stored)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, nil, ErrFileNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	data, err := r.files.read(ctx, file.StorageKey, file.Compression)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrFileNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	return file, data, nil
}

func revisionRef(code string, index int) string {
	return fmt.Sprintf("%s:rev%d", code, index)
}

func getPart(ctx context.Context, s store.Store, code string) (*model.Part, error) {
	part, err := s.GetPart(ctx, strings.TrimSpace(code))
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrPartNotFound
	}

	return part, err
}

func getRevision(ctx context.Context, s store.Store, code string, index int) (*model.Revision, error) {
	part, err := getPart(ctx, s, code)
	if err != nil {
		return nil, err
	}

	rev, err := s.GetRevision(ctx, part.ID, index)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, err
	}
	rev.Part = part

	return rev, nil
}
