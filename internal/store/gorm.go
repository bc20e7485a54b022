package store

import (
	"context"
	"errors"
	"strings"

	"github.com/emrgen/plm/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

// translate maps gorm errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrDuplicateKey):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Join(ErrDuplicateKey, err)
	case strings.Contains(strings.ToLower(err.Error()), "unique constraint"):
		// drivers that do not implement gorm's error translator
		return errors.Join(ErrDuplicateKey, err)
	default:
		return err
	}
}

func (g *GormStore) CreatePart(ctx context.Context, part *model.Part) error {
	return translate(g.db.WithContext(ctx).Omit(clause.Associations).Create(part).Error)
}

func (g *GormStore) GetPart(ctx context.Context, code string) (*model.Part, error) {
	var part model.Part
	err := g.db.WithContext(ctx).Where("code = ?", code).First(&part).Error
	if err != nil {
		return nil, translate(err)
	}

	return &part, nil
}

func (g *GormStore) GetPartDetail(ctx context.Context, code string) (*model.Part, error) {
	var part model.Part
	err := g.db.WithContext(ctx).
		Preload("Revisions", orderByIndex).
		Preload("Revisions.Certification", orderCertification).
		Preload("Revisions.Files", orderByID).
		Preload("Files", orderByID).
		Where("code = ?", code).
		First(&part).Error
	if err != nil {
		return nil, translate(err)
	}

	return &part, nil
}

func (g *GormStore) ListParts(ctx context.Context, includeUnreleased bool) ([]*model.Part, error) {
	var parts []*model.Part
	query := g.db.WithContext(ctx).Preload("Revisions", orderByIndex).Order("code asc")
	if !includeUnreleased {
		query = query.Where("EXISTS (SELECT 1 FROM revisions r WHERE r.part_id = parts.id AND r.is_released = ? AND r.deleted_at IS NULL)", true)
	}

	err := query.Find(&parts).Error
	return parts, translate(err)
}

func (g *GormStore) ListAllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := g.db.WithContext(ctx).Unscoped().Model(&model.Part{}).Pluck("code", &codes).Error
	return codes, translate(err)
}

func (g *GormStore) CreatePartFile(ctx context.Context, file *model.PartFile) error {
	return translate(g.db.WithContext(ctx).Create(file).Error)
}

func (g *GormStore) ListPartFiles(ctx context.Context, partID uint) ([]*model.PartFile, error) {
	var files []*model.PartFile
	err := g.db.WithContext(ctx).Where("part_id = ?", partID).Order("id asc").Find(&files).Error
	return files, translate(err)
}

func (g *GormStore) CreateRevision(ctx context.Context, rev *model.Revision) error {
	return translate(g.db.WithContext(ctx).Omit(clause.Associations).Create(rev).Error)
}

func (g *GormStore) GetRevision(ctx context.Context, partID uint, index int) (*model.Revision, error) {
	var rev model.Revision
	err := g.db.WithContext(ctx).
		Preload("Certification", orderCertification).
		Preload("Files", orderByID).
		Where("part_id = ? AND rev_index = ?", partID, index).
		First(&rev).Error
	if err != nil {
		return nil, translate(err)
	}

	return &rev, nil
}

func (g *GormStore) GetPreviousRevision(ctx context.Context, partID uint, index int) (*model.Revision, error) {
	var rev model.Revision
	err := g.db.WithContext(ctx).
		Preload("Certification", orderCertification).
		Preload("Files", orderByID).
		Where("part_id = ? AND rev_index < ?", partID, index).
		Order("rev_index desc").
		First(&rev).Error
	if err != nil {
		return nil, translate(err)
	}

	return &rev, nil
}

func (g *GormStore) ListRevisions(ctx context.Context, partID uint) ([]*model.Revision, error) {
	var revs []*model.Revision
	err := g.db.WithContext(ctx).
		Preload("Files", orderByID).
		Where("part_id = ?", partID).
		Order("rev_index asc").
		Find(&revs).Error
	return revs, translate(err)
}

func (g *GormStore) UpdateRevision(ctx context.Context, rev *model.Revision) error {
	err := g.db.WithContext(ctx).Model(rev).Select("State", "CadFile", "IsReleased", "ReleasedAt").Updates(rev).Error
	return translate(err)
}

func (g *GormStore) ReplaceCertification(ctx context.Context, revisionID uint, fields []*model.CertificationField) error {
	err := g.db.WithContext(ctx).Where("revision_id = ?", revisionID).Delete(&model.CertificationField{}).Error
	if err != nil {
		return translate(err)
	}
	if len(fields) == 0 {
		return nil
	}

	for _, field := range fields {
		field.ID = 0
		field.RevisionID = revisionID
	}

	return translate(g.db.WithContext(ctx).Create(fields).Error)
}

func (g *GormStore) CreateRevisionFile(ctx context.Context, file *model.RevisionFile) error {
	return translate(g.db.WithContext(ctx).Create(file).Error)
}

func (g *GormStore) GetRevisionFile(ctx context.Context, revisionID uint, storedName string) (*model.RevisionFile, error) {
	var file model.RevisionFile
	err := g.db.WithContext(ctx).Where("revision_id = ? AND stored_name = ?", revisionID, storedName).First(&file).Error
	if err != nil {
		return nil, translate(err)
	}

	return &file, nil
}

func (g *GormStore) ListStorageKeys(ctx context.Context) ([]string, error) {
	var revisionKeys, partKeys []string
	if err := g.db.WithContext(ctx).Model(&model.RevisionFile{}).Pluck("storage_key", &revisionKeys).Error; err != nil {
		return nil, translate(err)
	}
	if err := g.db.WithContext(ctx).Model(&model.PartFile{}).Pluck("storage_key", &partKeys).Error; err != nil {
		return nil, translate(err)
	}

	return append(revisionKeys, partKeys...), nil
}

func (g *GormStore) GetBomEdge(ctx context.Context, parentID, childID uint) (*model.BomEdge, error) {
	var edge model.BomEdge
	err := g.db.WithContext(ctx).Where("parent_id = ? AND child_id = ?", parentID, childID).First(&edge).Error
	if err != nil {
		return nil, translate(err)
	}

	return &edge, nil
}

func (g *GormStore) CreateBomEdge(ctx context.Context, edge *model.BomEdge) error {
	return translate(g.db.WithContext(ctx).Omit(clause.Associations).Create(edge).Error)
}

func (g *GormStore) UpdateBomEdge(ctx context.Context, edge *model.BomEdge) error {
	return translate(g.db.WithContext(ctx).Model(edge).Update("quantity", edge.Quantity).Error)
}

func (g *GormStore) DeleteBomEdge(ctx context.Context, id uint) error {
	return translate(g.db.WithContext(ctx).Delete(&model.BomEdge{}, id).Error)
}

func (g *GormStore) ListBomEdges(ctx context.Context, parentID uint) ([]*model.BomEdge, error) {
	var edges []*model.BomEdge
	err := g.db.WithContext(ctx).
		Preload("Child").
		Where("parent_id = ?", parentID).
		Order("id asc").
		Find(&edges).Error
	return edges, translate(err)
}

func (g *GormStore) ListChildIDs(ctx context.Context, parentIDs []uint) ([]uint, error) {
	var ids []uint
	if len(parentIDs) == 0 {
		return ids, nil
	}

	err := g.db.WithContext(ctx).Model(&model.BomEdge{}).Where("parent_id IN ?", parentIDs).Pluck("child_id", &ids).Error
	return ids, translate(err)
}

func (g *GormStore) CreateActivity(ctx context.Context, activity *model.ActivityLog) error {
	return translate(g.db.WithContext(ctx).Create(activity).Error)
}

func (g *GormStore) ListActivities(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
	var activities []*model.ActivityLog
	query := g.db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&activities).Error
	return activities, translate(err)
}

func (g *GormStore) GetCredential(ctx context.Context, account string) (*model.AccountCredential, error) {
	var cred model.AccountCredential
	err := g.db.WithContext(ctx).Where("account = ?", strings.ToLower(strings.TrimSpace(account))).First(&cred).Error
	if err != nil {
		return nil, translate(err)
	}

	return &cred, nil
}

func (g *GormStore) UpsertCredential(ctx context.Context, account, passwordHash string) error {
	cred := &model.AccountCredential{
		Account:      strings.ToLower(strings.TrimSpace(account)),
		PasswordHash: passwordHash,
	}

	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
	}).Create(cred).Error
	return translate(err)
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})

	return translate(err)
}

func orderByIndex(db *gorm.DB) *gorm.DB {
	return db.Order("rev_index asc")
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}

func orderCertification(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc").Order("id asc")
}
