package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *UserRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, NewUserRepo(db)
}

var userCols = []string{
	"id", "email", "password_hash", "tenant_id", "role_id", "manager_id",
	"is_active_in_tenant", "joined_at", "created_at", "updated_at",
	"r_id", "r_tenant_id", "r_name", "r_level",
	"can_view_all_data", "can_view_hierarchy_data", "can_manage_team", "can_manage_roles",
	"can_manage_clients", "can_upload_content", "can_generate_reports",
}

func TestUserRepoGetByIDLoadsRole(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN roles r ON r.id = u.role_id WHERE u.id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			7, "ana@example.com", "hash", 1, 3, nil,
			true, now, now, now,
			3, 1, "Manager", 1,
			false, true, true, false, true, true, true))

	u, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), *u.TenantID)
	assert.Nil(t, u.ManagerID)
	require.NotNil(t, u.Role)
	assert.Equal(t, "Manager", u.Role.Name)
	assert.True(t, u.Capabilities().ViewHierarchyData)
	assert.False(t, u.Capabilities().ViewAllData)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByIDWithoutRole(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()
	row := []driver.Value{8, "bo@example.com", "hash", nil, nil, nil, false, nil, now, now}
	for i := 0; i < 11; i++ {
		row = append(row, nil)
	}
	mock.ExpectQuery("SELECT").WithArgs(8).WillReturnRows(sqlmock.NewRows(userCols).AddRow(row...))

	u, err := repo.GetByID(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, u.Role)
	assert.Nil(t, u.TenantID)
	assert.Equal(t, false, u.Capabilities().ViewAllData)
}

func TestUserRepoGetByIDNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT").WithArgs(9).WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepoActiveSubordinates(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE manager_id = ? AND is_active_in_tenant = 1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2).AddRow(5))

	ids, err := repo.ActiveSubordinates(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoLookup(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, manager_id, is_active_in_tenant FROM users WHERE id = ?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "manager_id", "is_active_in_tenant"}).AddRow(1, 2, true))
	mock.ExpectQuery("SELECT tenant_id").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "manager_id", "is_active_in_tenant"}))

	n, err := repo.Lookup(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), *n.ManagerID)
	assert.True(t, n.IsActiveInTenant)

	_, err = repo.Lookup(context.Background(), 4)
	assert.ErrorIs(t, err, hierarchy.ErrUserNotFound)
}

func TestUserRepoSetManagerReturnsPrevious(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT manager_id FROM users WHERE id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"manager_id"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET manager_id = ?")).
		WithArgs(3, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mgr := uint64(3)
	old, err := repo.SetManager(context.Background(), 5, &mgr)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, uint64(2), *old)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoSetManagerRollsBackOnFailure(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT manager_id").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"manager_id"}).AddRow(nil))
	mock.ExpectExec("UPDATE users").
		WithArgs(nil, 5).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails"})
	mock.ExpectRollback()

	_, err := repo.SetManager(context.Background(), 5, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
