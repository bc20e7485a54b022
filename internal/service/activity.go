package service

import (
	"context"
	"strings"

	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/queue"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
)

// Audit actions.
const (
	ActionPartCreated        = "codice_creato"
	ActionPartFileUploaded   = "file_caricato"
	ActionRevisionCreated    = "revisione_creata"
	ActionRevisionReleased   = "revisione_rilasciata"
	ActionRevisionState      = "revisione_cambia_stato"
	ActionRevisionFiles      = "revisione_carica_file"
	ActionCertificationSaved = "certificazione_salvata"
	ActionBomMerged          = "distinta_aggiornata"

	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// NewActivityService creates a new ActivityService.
func NewActivityService(store store.Store, publisher queue.ActivityPublisher) *ActivityService {
	if publisher == nil {
		publisher = queue.NewNop()
	}

	return &ActivityService{store: store, publisher: publisher}
}

// ActivityService appends audit records and forwards them downstream once committed.
type ActivityService struct {
	store     store.Store
	publisher queue.ActivityPublisher
}

// record writes an audit record through tx, so it commits or rolls back with the action.
func (a *ActivityService) record(ctx context.Context, tx store.Store, acc registry.Account, action, reference, details string) (*model.ActivityLog, error) {
	if strings.TrimSpace(acc.Name) == "" {
		return nil, ErrMissingAccountContext
	}

	activity := &model.ActivityLog{
		Facility:  acc.Facility,
		Group:     acc.Group,
		Account:   acc.Name,
		Action:    action,
		Reference: reference,
		Details:   details,
	}
	if err := tx.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}

	return activity, nil
}

// publish forwards committed records; failures are logged and never returned.
func (a *ActivityService) publish(ctx context.Context, activities ...*model.ActivityLog) {
	for _, activity := range activities {
		if activity == nil {
			continue
		}
		if err := a.publisher.Publish(ctx, activity); err != nil {
			logrus.Warnf("publish activity %s %s: %v", activity.Action, activity.Reference, err)
		}
	}
}

// ListActivities returns the most recent audit records first.
func (a *ActivityService) ListActivities(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)

	return a.store.ListActivities(ctx, limit)
}
