package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

var customerCols = []string{"id", "name", "tenant_id", "user_id", "created_by", "primary_owner_id", "created_at"}

func TestCustomerListAppliesHierarchyScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	scope := visibility.Scope{Tier: visibility.TierHierarchy, TenantID: 1, OwnerIDs: []uint64{2, 3}}
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT "+customerColumns+" FROM customers WHERE tenant_id = ? AND owner_id IN (?,?)"+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs(1, 2, 3, DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow(10, "Acme", 1, 2, 2, 2, time.Now()).
			AddRow(11, "Globex", 1, 3, nil, nil, time.Now()))

	got, err := NewCustomerRepo(db).List(context.Background(), scope, Page{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), *got[1].Owner(), "legacy owner is used when provenance is unset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerListTenantWideScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE tenant_id = ? ORDER BY")).
		WithArgs(4, MaxPageSize, 20).
		WillReturnRows(sqlmock.NewRows(customerCols))

	got, err := NewCustomerRepo(db).List(context.Background(),
		visibility.Scope{Tier: visibility.TierAll, TenantID: 4}, Page{Limit: 10_000, Offset: 20})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoneScopeNeverQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	none := visibility.Scope{Tier: visibility.TierNone}
	got, err := NewRecordingRepo(db).List(context.Background(), none, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewReportRepo(db).Get(context.Background(), none, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOutsideScopeIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	self := visibility.Scope{Tier: visibility.TierSelf, TenantID: 1, OwnerIDs: []uint64{5}}
	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM sales_rooms WHERE id = ? AND tenant_id = ? AND owner_id IN (?)")).
		WithArgs(40, 1, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tenant_id", "user_id", "customer_id", "created_by", "created_at"}))

	_, err = NewSalesRoomRepo(db).Get(context.Background(), self, 40)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetVisibleRecording(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	self := visibility.Scope{Tier: visibility.TierSelf, TenantID: 1, OwnerIDs: []uint64{5}}
	mock.ExpectQuery(regexp.QuoteMeta("FROM recordings WHERE id = ? AND tenant_id = ?")).
		WithArgs(20, 1, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "tenant_id", "user_id", "customer_id", "uploaded_by", "created_at"}).
			AddRow(20, "Discovery call", 1, 5, 10, 5, time.Now()))

	rec, err := NewRecordingRepo(db).Get(context.Background(), self, 20)
	require.NoError(t, err)
	assert.Equal(t, "Discovery call", rec.Title)
	assert.True(t, self.Allows(rec))
}

func TestListPropagatesDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("bad connection")
	mock.ExpectQuery("FROM reports").WillReturnError(boom)

	_, err = NewReportRepo(db).List(context.Background(),
		visibility.Scope{Tier: visibility.TierAll, TenantID: 1}, Page{})
	assert.ErrorIs(t, err, boom)
}

func TestEntityOwnerExprsMatchOwnerMethods(t *testing.T) {
	cases := map[model.EntityKind]string{
		model.EntityCustomer:  "primary_owner_id",
		model.EntityRecording: "uploaded_by",
		model.EntityReport:    "created_by",
		model.EntitySalesRoom: "created_by",
	}
	for kind, col := range cases {
		assert.Equal(t, "COALESCE("+col+", user_id)", kind.OwnerExpr, kind.Name)
	}
}

func TestSchemaIndexesOwnerColumn(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_tenancy.sql"))
	require.NoError(t, err)
	ddl := string(raw)

	for _, kind := range []model.EntityKind{model.EntityCustomer, model.EntityRecording, model.EntityReport, model.EntitySalesRoom} {
		generated := regexp.MustCompile(regexp.QuoteMeta(kind.OwnerColumn) +
			`\s+BIGINT UNSIGNED AS \(` + regexp.QuoteMeta(kind.OwnerExpr) + `\) STORED`)
		assert.Regexp(t, generated, ddl, kind.Name)

		index := regexp.MustCompile(`KEY idx_` + kind.Table + `_tenant_owner \(tenant_id, ` + kind.OwnerColumn + `\)`)
		assert.Regexp(t, index, ddl, kind.Name)
	}
}
