package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

// TypeDirectory resolves edge types and their symmetric associations.
// Every edge operation resolves one or two types, so lookups are cached in
// memory after the first hit; entries are evicted on deletion and dropped
// wholesale by Clear. Staleness after out-of-band table changes is accepted
// and bounded by an explicit Clear.
type TypeDirectory struct {
	store Store

	mu            sync.RWMutex
	byID          map[int64]*entities.EdgeType
	byName        map[string]*entities.EdgeType
	assocByDirect map[int64]*entities.EdgeTypeAssociation
}

func NewTypeDirectory(store Store) *TypeDirectory {
	return &TypeDirectory{
		store:         store,
		byID:          make(map[int64]*entities.EdgeType),
		byName:        make(map[string]*entities.EdgeType),
		assocByDirect: make(map[int64]*entities.EdgeTypeAssociation),
	}
}

func (d *TypeDirectory) CreateEdgeType(ctx context.Context, name, readAs string) (*entities.EdgeType, error) {
	edgeType := &entities.EdgeType{Name: name, ReadAs: readAs}
	if err := d.store.CreateEdgeType(ctx, edgeType); err != nil {
		return nil, fmt.Errorf("failed to create edge type %q: %w", name, err)
	}
	d.add(edgeType)
	return edgeType, nil
}

func (d *TypeDirectory) ByName(ctx context.Context, name string) (*entities.EdgeType, error) {
	d.mu.RLock()
	cached, ok := d.byName[name]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	edgeType, err := d.store.GetEdgeTypeByName(ctx, name)
	if err != nil {
		return nil, err
	}
	d.add(edgeType)
	return edgeType, nil
}

func (d *TypeDirectory) ByID(ctx context.Context, id int64) (*entities.EdgeType, error) {
	d.mu.RLock()
	cached, ok := d.byID[id]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	edgeType, err := d.store.GetEdgeTypeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.add(edgeType)
	return edgeType, nil
}

func (d *TypeDirectory) List(ctx context.Context) ([]entities.EdgeType, error) {
	return d.store.ListEdgeTypes(ctx)
}

// DeleteEdgeType removes the type row and evicts it, along with any cached
// association it participates in.
func (d *TypeDirectory) DeleteEdgeType(ctx context.Context, id int64) error {
	deleted, err := d.store.DeleteEdgeType(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete edge type %d: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("edge type %d: %w", id, domain.ErrEdgeTypeNotFound)
	}
	d.evictType(id)
	return nil
}

// Associate declares direct→inverse mirroring and, in the same transaction,
// the symmetric inverse→direct pair unless it already exists. A
// self-symmetric type (direct == inverse) yields a single row.
func (d *TypeDirectory) Associate(ctx context.Context, directTypeID, inverseTypeID int64) (*entities.EdgeTypeAssociation, error) {
	association := &entities.EdgeTypeAssociation{DirectTypeID: directTypeID, InverseTypeID: inverseTypeID}

	err := d.store.WithinTransaction(ctx, func(tx StoreTx) error {
		if err := tx.CreateAssociation(ctx, association); err != nil {
			return err
		}
		// Existence check guards the recursion: for a self-symmetric pair the
		// row just created is its own reverse.
		_, err := tx.GetAssociationByDirect(ctx, inverseTypeID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrAssociationNotFound) {
			return err
		}
		reverse := &entities.EdgeTypeAssociation{DirectTypeID: inverseTypeID, InverseTypeID: directTypeID}
		return tx.CreateAssociation(ctx, reverse)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to associate edge types %d->%d: %w", directTypeID, inverseTypeID, err)
	}

	d.mu.Lock()
	delete(d.assocByDirect, directTypeID)
	delete(d.assocByDirect, inverseTypeID)
	d.mu.Unlock()
	return association, nil
}

// Dissociate removes the association whose direct side is the given type and
// its symmetric reverse in one transaction.
func (d *TypeDirectory) Dissociate(ctx context.Context, directTypeID int64) error {
	err := d.store.WithinTransaction(ctx, func(tx StoreTx) error {
		association, err := tx.GetAssociationByDirect(ctx, directTypeID)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteAssociation(ctx, association.ID); err != nil {
			return err
		}
		if association.SelfSymmetric() {
			return nil
		}
		reverse, err := tx.GetAssociationByDirect(ctx, association.InverseTypeID)
		if errors.Is(err, domain.ErrAssociationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.DeleteAssociation(ctx, reverse.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to dissociate edge type %d: %w", directTypeID, err)
	}

	d.mu.Lock()
	for direct, assoc := range d.assocByDirect {
		if assoc.DirectTypeID == directTypeID || assoc.InverseTypeID == directTypeID {
			delete(d.assocByDirect, direct)
		}
	}
	d.mu.Unlock()
	return nil
}

// AssociationForDirect returns the association with the given direct type,
// or domain.ErrAssociationNotFound.
func (d *TypeDirectory) AssociationForDirect(ctx context.Context, directTypeID int64) (*entities.EdgeTypeAssociation, error) {
	d.mu.RLock()
	cached, ok := d.assocByDirect[directTypeID]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	association, err := d.store.GetAssociationByDirect(ctx, directTypeID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.assocByDirect[directTypeID] = association
	d.mu.Unlock()
	return association, nil
}

// associationForDirectTx resolves through the in-memory cache but falls back
// to the supplied transaction view, so in-transaction enforcers never reach
// outside their write's scope.
func (d *TypeDirectory) associationForDirectTx(ctx context.Context, tx StoreTx, directTypeID int64) (*entities.EdgeTypeAssociation, error) {
	d.mu.RLock()
	cached, ok := d.assocByDirect[directTypeID]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	association, err := tx.GetAssociationByDirect(ctx, directTypeID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.assocByDirect[directTypeID] = association
	d.mu.Unlock()
	return association, nil
}

// Invalidate evicts a single type from the lookup caches.
func (d *TypeDirectory) Invalidate(id int64) {
	d.evictType(id)
}

// Clear drops every cached type and association.
func (d *TypeDirectory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID = make(map[int64]*entities.EdgeType)
	d.byName = make(map[string]*entities.EdgeType)
	d.assocByDirect = make(map[int64]*entities.EdgeTypeAssociation)
}

func (d *TypeDirectory) add(edgeType *entities.EdgeType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[edgeType.ID] = edgeType
	d.byName[edgeType.Name] = edgeType
}

func (d *TypeDirectory) evictType(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if edgeType, ok := d.byID[id]; ok {
		delete(d.byName, edgeType.Name)
		delete(d.byID, id)
	}
	for direct, assoc := range d.assocByDirect {
		if assoc.DirectTypeID == id || assoc.InverseTypeID == id {
			delete(d.assocByDirect, direct)
		}
	}
}
