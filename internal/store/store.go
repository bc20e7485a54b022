package store

import (
	"context"
	"errors"

	"github.com/emrgen/plm/internal/model"
)

var (
	// ErrRecordNotFound is returned when a lookup matches no row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert or update violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

type Store interface {
	PartStore
	RevisionStore
	BomStore
	ActivityStore
	CredentialStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type PartStore interface {
	// CreatePart inserts a new part.
	CreatePart(ctx context.Context, part *model.Part) error
	// GetPart retrieves a part by code, without associations.
	GetPart(ctx context.Context, code string) (*model.Part, error)
	// GetPartDetail retrieves a part by code with revisions, certification, and files loaded.
	GetPartDetail(ctx context.Context, code string) (*model.Part, error)
	// ListParts retrieves parts with their revisions; parts without a released
	// revision are skipped unless includeUnreleased is set.
	ListParts(ctx context.Context, includeUnreleased bool) ([]*model.Part, error)
	// ListAllCodes returns every code ever stored, soft deleted parts included.
	ListAllCodes(ctx context.Context) ([]string, error)
	// CreatePartFile inserts a legacy flat file row.
	CreatePartFile(ctx context.Context, file *model.PartFile) error
	// ListPartFiles retrieves the flat files of a part.
	ListPartFiles(ctx context.Context, partID uint) ([]*model.PartFile, error)
}

type RevisionStore interface {
	// CreateRevision inserts a new revision.
	CreateRevision(ctx context.Context, rev *model.Revision) error
	// GetRevision retrieves a revision with certification and files loaded.
	GetRevision(ctx context.Context, partID uint, index int) (*model.Revision, error)
	// GetPreviousRevision retrieves the revision with the greatest index below index.
	GetPreviousRevision(ctx context.Context, partID uint, index int) (*model.Revision, error)
	// ListRevisions retrieves the revisions of a part ordered by index.
	ListRevisions(ctx context.Context, partID uint) ([]*model.Revision, error)
	// UpdateRevision saves state, cad file, and release columns.
	UpdateRevision(ctx context.Context, rev *model.Revision) error
	// ReplaceCertification deletes all certification fields of a revision and inserts fields.
	ReplaceCertification(ctx context.Context, revisionID uint, fields []*model.CertificationField) error
	// CreateRevisionFile inserts a revision file row.
	CreateRevisionFile(ctx context.Context, file *model.RevisionFile) error
	// GetRevisionFile retrieves a revision file by its stored name.
	GetRevisionFile(ctx context.Context, revisionID uint, storedName string) (*model.RevisionFile, error)
	// ListStorageKeys returns the storage keys referenced by revision and part files.
	ListStorageKeys(ctx context.Context) ([]string, error)
}

type BomStore interface {
	// GetBomEdge retrieves the edge between parent and child.
	GetBomEdge(ctx context.Context, parentID, childID uint) (*model.BomEdge, error)
	// CreateBomEdge inserts a new edge.
	CreateBomEdge(ctx context.Context, edge *model.BomEdge) error
	// UpdateBomEdge saves the quantity of an edge.
	UpdateBomEdge(ctx context.Context, edge *model.BomEdge) error
	// DeleteBomEdge removes an edge.
	DeleteBomEdge(ctx context.Context, id uint) error
	// ListBomEdges retrieves the direct children edges of a parent with the child part loaded.
	ListBomEdges(ctx context.Context, parentID uint) ([]*model.BomEdge, error)
	// ListChildIDs returns the direct child ids of each given parent id.
	ListChildIDs(ctx context.Context, parentIDs []uint) ([]uint, error)
}

type ActivityStore interface {
	// CreateActivity appends an audit record.
	CreateActivity(ctx context.Context, activity *model.ActivityLog) error
	// ListActivities returns the most recent audit records first.
	ListActivities(ctx context.Context, limit int) ([]*model.ActivityLog, error)
}

type CredentialStore interface {
	// GetCredential retrieves the credential of an account.
	GetCredential(ctx context.Context, account string) (*model.AccountCredential, error)
	// UpsertCredential creates or replaces the password hash of an account.
	UpsertCredential(ctx context.Context, account, passwordHash string) error
}
