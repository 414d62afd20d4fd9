// Package repository wraps one store table per aggregate and adds the
// aggregate-specific queries. Repositories hold no business rules; they
// translate store failures into the apperr taxonomy.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/domain"
	"github.com/matthewbaird/rentalops/internal/store"
)

// Repo is the generic get/add/update surface shared by every aggregate.
type Repo[T store.Record] struct {
	table store.Table[T]
	kind  string
}

func newRepo[T store.Record](table store.Table[T], kind string) Repo[T] {
	return Repo[T]{table: table, kind: kind}
}

func (r Repo[T]) Get(ctx context.Context, id string) (T, error) {
	v, err := r.table.Get(ctx, id)
	if err != nil {
		return v, r.mapErr("get", id, err)
	}
	return v, nil
}

func (r Repo[T]) Add(ctx context.Context, v T) error {
	return r.mapErr("add", v.StoreKey(), r.table.Insert(ctx, v))
}

func (r Repo[T]) Update(ctx context.Context, v T) error {
	return r.mapErr("update", v.StoreKey(), r.table.Update(ctx, v))
}

func (r Repo[T]) List(ctx context.Context) ([]T, error) {
	return r.find(ctx, nil)
}

func (r Repo[T]) find(ctx context.Context, match func(T) bool) ([]T, error) {
	out, err := r.table.Find(ctx, match)
	if err != nil {
		return nil, r.mapErr("find", "", err)
	}
	return out, nil
}

func (r Repo[T]) mapErr(action, id string, err error) error {
	if err == nil {
		return nil
	}
	op := r.kind + "." + action
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.KindNotFound, op, r.kind+" "+id+" not found", err)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.New(apperr.KindConflict, op, r.kind+" "+id+" already exists", err)
	case errors.Is(err, store.ErrVersionConflict):
		return apperr.New(apperr.KindConflict, op, r.kind+" "+id+" was modified concurrently", err)
	default:
		return apperr.Dependency(op, err)
	}
}

// Set bundles every repository the services need.
type Set struct {
	Properties   Properties
	Negotiations Negotiations
	Financial    FinancialEntries
	Documents    Documents
	Inspections  Inspections
	Maintenance  MaintenanceOrders
	Agenda       AgendaEvents
}

// NewMemorySet builds a Set backed by in-memory tables.
func NewMemorySet() *Set {
	return &Set{
		Properties:   Properties{newRepo[domain.Property](store.NewMemory[domain.Property](), "property")},
		Negotiations: Negotiations{newRepo[domain.Negotiation](store.NewMemory[domain.Negotiation](), "negotiation")},
		Financial:    NewFinancialEntries(store.NewMemory[domain.FinancialEntry]()),
		Documents:    Documents{newRepo[domain.DocumentWorkflow](store.NewMemory[domain.DocumentWorkflow](), "document_workflow")},
		Inspections:  NewInspections(store.NewMemory[domain.Inspection]()),
		Maintenance:  MaintenanceOrders{newRepo[domain.MaintenanceOrder](store.NewMemory[domain.MaintenanceOrder](), "maintenance_order")},
		Agenda:       NewAgendaEvents(store.NewMemory[domain.AgendaEvent]()),
	}
}

// NewSQLSet builds a Set backed by SQLite tables in db, creating them when
// missing.
func NewSQLSet(ctx context.Context, db *sql.DB) (*Set, error) {
	props, err := store.NewSQLTable[domain.Property](ctx, db, "properties")
	if err != nil {
		return nil, err
	}
	negs, err := store.NewSQLTable[domain.Negotiation](ctx, db, "negotiations")
	if err != nil {
		return nil, err
	}
	fin, err := store.NewSQLTable[domain.FinancialEntry](ctx, db, "financial_entries")
	if err != nil {
		return nil, err
	}
	docs, err := store.NewSQLTable[domain.DocumentWorkflow](ctx, db, "document_workflows")
	if err != nil {
		return nil, err
	}
	insp, err := store.NewSQLTable[domain.Inspection](ctx, db, "inspections")
	if err != nil {
		return nil, err
	}
	maint, err := store.NewSQLTable[domain.MaintenanceOrder](ctx, db, "maintenance_orders")
	if err != nil {
		return nil, err
	}
	agenda, err := store.NewSQLTable[domain.AgendaEvent](ctx, db, "agenda_events")
	if err != nil {
		return nil, err
	}
	return &Set{
		Properties:   Properties{newRepo[domain.Property](props, "property")},
		Negotiations: Negotiations{newRepo[domain.Negotiation](negs, "negotiation")},
		Financial:    NewFinancialEntries(fin),
		Documents:    Documents{newRepo[domain.DocumentWorkflow](docs, "document_workflow")},
		Inspections:  NewInspections(insp),
		Maintenance:  MaintenanceOrders{newRepo[domain.MaintenanceOrder](maint, "maintenance_order")},
		Agenda:       NewAgendaEvents(agenda),
	}, nil
}
