package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/plm/internal/cache"
	"github.com/emrgen/plm/internal/metrics"
	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
)

// BOM merge outcomes.
const (
	MergeCreated = "creato"
	MergeUpdated = "aggiornato"
	MergeRemoved = "rimosso"
)

// MergeResult reports the effect of a BOM merge.
type MergeResult struct {
	Message  string  `json:"msg"`
	Quantity float64 `json:"quantita"`
	Action   string  `json:"azione"`
}

// NewBomService creates a new BomService.
func NewBomService(store store.Store, components cache.ComponentCache, activity *ActivityService) *BomService {
	if components == nil {
		components = cache.NewNop()
	}

	return &BomService{
		store:    store,
		cache:    components,
		activity: activity,
	}
}

// BomService maintains parent/child edges between parts.
type BomService struct {
	store    store.Store
	cache    cache.ComponentCache
	activity *ActivityService
}

// MergeComponent adds quantity to the parent/child edge. An edge driven to zero
// or below is removed; a missing edge is created only for a positive quantity
// that does not close a cycle.
func (b *BomService) MergeComponent(ctx context.Context, acc registry.Account, parentCode, childCode string, quantity float64) (*MergeResult, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, ErrInvalidQuantity
	}

	var result *MergeResult
	var activity *model.ActivityLog
	var parentKey string
	err := b.store.Transaction(ctx, func(tx store.Store) error {
		parent, err := tx.GetPart(ctx, strings.TrimSpace(parentCode))
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrBomPartNotFound
		}
		if err != nil {
			return err
		}
		parentKey = parent.Code

		child, err := tx.GetPart(ctx, strings.TrimSpace(childCode))
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrBomPartNotFound
		}
		if err != nil {
			return err
		}

		edge, err := tx.GetBomEdge(ctx, parent.ID, child.ID)
		switch {
		case err == nil:
			result, err = mergeExisting(ctx, tx, edge, parent.Code, child.Code, quantity)
		case errors.Is(err, store.ErrRecordNotFound):
			result, err = createEdge(ctx, tx, parent, child, quantity)
		}
		if err != nil {
			return err
		}

		details := fmt.Sprintf("%s %s qta=%s", result.Action, child.Code, formatQuantity(result.Quantity))
		activity, err = b.activity.record(ctx, tx, acc, ActionBomMerged, parent.Code, details)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.BomMerges.WithLabelValues(result.Action).Inc()
	if err := b.cache.InvalidateComponents(ctx, parentKey); err != nil {
		logrus.Warnf("invalidate components of %s: %v", parentKey, err)
	}
	b.activity.publish(ctx, activity)

	return result, nil
}

func mergeExisting(ctx context.Context, tx store.Store, edge *model.BomEdge, parentCode, childCode string, quantity float64) (*MergeResult, error) {
	edge.Quantity += quantity
	if edge.Quantity <= 0 {
		if err := tx.DeleteBomEdge(ctx, edge.ID); err != nil {
			return nil, err
		}

		return &MergeResult{
			Message:  fmt.Sprintf("Rimosso %s da %s", childCode, parentCode),
			Quantity: 0,
			Action:   MergeRemoved,
		}, nil
	}

	if err := tx.UpdateBomEdge(ctx, edge); err != nil {
		return nil, err
	}

	return &MergeResult{
		Message:  fmt.Sprintf("Aggiornato %s in %s (qta=%s)", childCode, parentCode, formatQuantity(edge.Quantity)),
		Quantity: edge.Quantity,
		Action:   MergeUpdated,
	}, nil
}

func createEdge(ctx context.Context, tx store.Store, parent, child *model.Part, quantity float64) (*MergeResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cyclic, err := reaches(ctx, tx, child.ID, parent.ID)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, fmt.Errorf("%w: %s is already below %s", ErrBomCycle, parent.Code, child.Code)
	}

	edge := &model.BomEdge{ParentID: parent.ID, ChildID: child.ID, Quantity: quantity}
	if err := tx.CreateBomEdge(ctx, edge); err != nil {
		return nil, err
	}

	return &MergeResult{
		Message:  fmt.Sprintf("Aggiunto %s a %s (qta=%s)", child.Code, parent.Code, formatQuantity(quantity)),
		Quantity: quantity,
		Action:   MergeCreated,
	}, nil
}

// reaches walks the BOM breadth first from start and reports whether target is
// start itself or one of its descendants.
func reaches(ctx context.Context, tx store.Store, start, target uint) (bool, error) {
	visited := mapset.NewThreadUnsafeSet[uint](start)
	frontier := []uint{start}
	for len(frontier) > 0 {
		if visited.Contains(target) {
			return true, nil
		}

		children, err := tx.ListChildIDs(ctx, frontier)
		if err != nil {
			return false, err
		}

		frontier = frontier[:0]
		for _, id := range children {
			if visited.Add(id) {
				frontier = append(frontier, id)
			}
		}
	}

	return visited.Contains(target), nil
}

// GetComponents returns the direct children of a part, served from the cache when present.
func (b *BomService) GetComponents(ctx context.Context, code string) ([]*model.Component, error) {
	code = strings.TrimSpace(code)
	if components, ok, err := b.cache.GetComponents(ctx, code); err != nil {
		logrus.Warnf("read cached components of %s: %v", code, err)
	} else if ok {
		return components, nil
	}

	part, err := getPart(ctx, b.store, code)
	if err != nil {
		return nil, err
	}

	edges, err := b.store.ListBomEdges(ctx, part.ID)
	if err != nil {
		return nil, err
	}

	components := make([]*model.Component, 0, len(edges))
	for _, edge := range edges {
		if edge.Child == nil {
			continue
		}
		components = append(components, &model.Component{
			Code:        edge.Child.Code,
			Description: edge.Child.Description,
			Quantity:    edge.Quantity,
		})
	}

	if err := b.cache.SetComponents(ctx, part.Code, components); err != nil {
		logrus.Warnf("cache components of %s: %v", part.Code, err)
	}

	return components, nil
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
