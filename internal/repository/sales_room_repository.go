package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

// SalesRoomRepo reads sales rooms through a visibility scope.
type SalesRoomRepo struct{ q querier }

func NewSalesRoomRepo(db *sql.DB) *SalesRoomRepo { return &SalesRoomRepo{q: db} }

const salesRoomColumns = "id, name, tenant_id, user_id, customer_id, created_by, created_at"

func scanSalesRoom(s rowScanner) (model.SalesRoom, error) {
	var (
		room                       model.SalesRoom
		tenant, user, customer, by sql.NullInt64
	)
	if err := s.Scan(&room.ID, &room.Name, &tenant, &user, &customer, &by, &room.CreatedAt); err != nil {
		return room, err
	}
	room.TenantID, room.UserID, room.CustomerID, room.CreatedBy = nullID(tenant), nullID(user), nullID(customer), nullID(by)
	return room, nil
}

// List returns the sales rooms visible under s, newest first.
func (r *SalesRoomRepo) List(ctx context.Context, s visibility.Scope, p Page) ([]model.SalesRoom, error) {
	out := []model.SalesRoom{}
	err := scopedList(ctx, r.q, model.EntitySalesRoom, salesRoomColumns, s, p, func(rows *sql.Rows) error {
		room, err := scanSalesRoom(rows)
		if err != nil {
			return err
		}
		out = append(out, room)
		return nil
	})
	return out, err
}

// Get returns sales room id if it is visible under s, else ErrNotFound.
func (r *SalesRoomRepo) Get(ctx context.Context, s visibility.Scope, id uint64) (*model.SalesRoom, error) {
	var room model.SalesRoom
	err := scopedGet(ctx, r.q, model.EntitySalesRoom, salesRoomColumns, s, id, func(row rowScanner) error {
		var err error
		room, err = scanSalesRoom(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *SalesRoomRepo) pending(ctx context.Context, owner *uint64) ([]model.SalesRoom, error) {
	cond, args := ownerFilter(owner)
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+salesRoomColumns+" FROM sales_rooms WHERE (tenant_id IS NULL OR created_by IS NULL)"+cond+" ORDER BY id",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SalesRoom
	for rows.Next() {
		room, err := scanSalesRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *SalesRoomRepo) update(ctx context.Context, room *model.SalesRoom) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE sales_rooms SET tenant_id = ?, created_by = ? WHERE id = ?",
		argID(room.TenantID), argID(room.CreatedBy), room.ID)
	return err
}
