package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

// Page bounds a list query.  A zero Limit means DefaultPageSize.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

func (p Page) clamp() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// scopedList runs "SELECT cols FROM kind.Table WHERE <scope>" newest
// first and hands each row to scan.  A TierNone scope never reaches the
// database.
func scopedList(ctx context.Context, q querier, kind model.EntityKind, cols string, s visibility.Scope, p Page,
	scan func(*sql.Rows) error) error {
	if s.Tier == visibility.TierNone {
		return nil
	}
	p = p.clamp()
	where, args := s.Where("tenant_id", kind.OwnerColumn)
	args = append(args, p.Limit, p.Offset)
	rows, err := q.QueryContext(ctx,
		"SELECT "+cols+" FROM "+kind.Table+" WHERE "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scopedGet loads one row by id inside the scope.  Rows outside the
// scope are indistinguishable from missing rows.
func scopedGet(ctx context.Context, q querier, kind model.EntityKind, cols string, s visibility.Scope, id uint64,
	scan func(rowScanner) error) error {
	if s.Tier == visibility.TierNone {
		return ErrNotFound
	}
	where, args := s.Where("tenant_id", kind.OwnerColumn)
	args = append([]any{id}, args...)
	err := scan(q.QueryRowContext(ctx, "SELECT "+cols+" FROM "+kind.Table+" WHERE id = ? AND "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// tenantOfRow returns the tenant_id of row id in table, nil when unset
// or the row does not exist.
func tenantOfRow(ctx context.Context, q querier, table string, id uint64) (*uint64, error) {
	var t sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT tenant_id FROM "+table+" WHERE id = ?", id).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nullID(t), nil
}

// ownerFilter narrows a pending query to one legacy owner.
func ownerFilter(owner *uint64) (string, []any) {
	if owner == nil {
		return "", nil
	}
	return " AND user_id = ?", []any{*owner}
}
