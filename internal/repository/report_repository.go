package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

// ReportRepo reads reports through a visibility scope.
type ReportRepo struct{ q querier }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{q: db} }

const reportColumns = "id, title, tenant_id, user_id, recording_id, customer_id, created_by, created_at"

func scanReport(s rowScanner) (model.Report, error) {
	var (
		rep                                   model.Report
		tenant, user, recording, customer, by sql.NullInt64
	)
	if err := s.Scan(&rep.ID, &rep.Title, &tenant, &user, &recording, &customer, &by, &rep.CreatedAt); err != nil {
		return rep, err
	}
	rep.TenantID, rep.UserID = nullID(tenant), nullID(user)
	rep.RecordingID, rep.CustomerID, rep.CreatedBy = nullID(recording), nullID(customer), nullID(by)
	return rep, nil
}

// List returns the reports visible under s, newest first.
func (r *ReportRepo) List(ctx context.Context, s visibility.Scope, p Page) ([]model.Report, error) {
	out := []model.Report{}
	err := scopedList(ctx, r.q, model.EntityReport, reportColumns, s, p, func(rows *sql.Rows) error {
		rep, err := scanReport(rows)
		if err != nil {
			return err
		}
		out = append(out, rep)
		return nil
	})
	return out, err
}

// Get returns report id if it is visible under s, else ErrNotFound.
func (r *ReportRepo) Get(ctx context.Context, s visibility.Scope, id uint64) (*model.Report, error) {
	var rep model.Report
	err := scopedGet(ctx, r.q, model.EntityReport, reportColumns, s, id, func(row rowScanner) error {
		var err error
		rep, err = scanReport(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepo) pending(ctx context.Context, owner *uint64) ([]model.Report, error) {
	cond, args := ownerFilter(owner)
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE (tenant_id IS NULL OR created_by IS NULL)"+cond+" ORDER BY id",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *ReportRepo) update(ctx context.Context, rep *model.Report) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE reports SET tenant_id = ?, created_by = ? WHERE id = ?",
		argID(rep.TenantID), argID(rep.CreatedBy), rep.ID)
	return err
}
