package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

// RecordingRepo reads recordings through a visibility scope.
type RecordingRepo struct{ q querier }

func NewRecordingRepo(db *sql.DB) *RecordingRepo { return &RecordingRepo{q: db} }

const recordingColumns = "id, title, tenant_id, user_id, customer_id, uploaded_by, created_at"

func scanRecording(s rowScanner) (model.Recording, error) {
	var (
		rec                          model.Recording
		tenant, user, customer, upBy sql.NullInt64
	)
	if err := s.Scan(&rec.ID, &rec.Title, &tenant, &user, &customer, &upBy, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.TenantID, rec.UserID, rec.CustomerID, rec.UploadedBy = nullID(tenant), nullID(user), nullID(customer), nullID(upBy)
	return rec, nil
}

// List returns the recordings visible under s, newest first.
func (r *RecordingRepo) List(ctx context.Context, s visibility.Scope, p Page) ([]model.Recording, error) {
	out := []model.Recording{}
	err := scopedList(ctx, r.q, model.EntityRecording, recordingColumns, s, p, func(rows *sql.Rows) error {
		rec, err := scanRecording(rows)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Get returns recording id if it is visible under s, else ErrNotFound.
func (r *RecordingRepo) Get(ctx context.Context, s visibility.Scope, id uint64) (*model.Recording, error) {
	var rec model.Recording
	err := scopedGet(ctx, r.q, model.EntityRecording, recordingColumns, s, id, func(row rowScanner) error {
		var err error
		rec, err = scanRecording(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecordingRepo) pending(ctx context.Context, owner *uint64) ([]model.Recording, error) {
	cond, args := ownerFilter(owner)
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+recordingColumns+" FROM recordings WHERE (tenant_id IS NULL OR uploaded_by IS NULL)"+cond+" ORDER BY id",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordingRepo) update(ctx context.Context, rec *model.Recording) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE recordings SET tenant_id = ?, uploaded_by = ? WHERE id = ?",
		argID(rec.TenantID), argID(rec.UploadedBy), rec.ID)
	return err
}
