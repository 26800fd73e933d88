package migration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

type memState struct {
	nextID     uint64
	users      map[uint64]model.User
	tenants    map[uint64]model.Tenant
	roles      map[uint64]model.Role
	customers  map[uint64]model.Customer
	recordings map[uint64]model.Recording
	reports    map[uint64]model.Report
	rooms      map[uint64]model.SalesRoom
}

func newMemState() *memState {
	return &memState{
		nextID:     1000,
		users:      map[uint64]model.User{},
		tenants:    map[uint64]model.Tenant{},
		roles:      map[uint64]model.Role{},
		customers:  map[uint64]model.Customer{},
		recordings: map[uint64]model.Recording{},
		reports:    map[uint64]model.Report{},
		rooms:      map[uint64]model.SalesRoom{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:     s.nextID,
		users:      maps.Clone(s.users),
		tenants:    maps.Clone(s.tenants),
		roles:      maps.Clone(s.roles),
		customers:  maps.Clone(s.customers),
		recordings: maps.Clone(s.recordings),
		reports:    maps.Clone(s.reports),
		rooms:      maps.Clone(s.rooms),
	}
}

// memStore is a transactional in-memory Store.  Begin works on a copy
// of the committed state; Commit swaps it in.
type memStore struct {
	state *memState

	failCustomer  map[uint64]bool
	failRecording error
	begins        int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), failCustomer: map[uint64]bool{}}
}

func (m *memStore) Begin(context.Context) (Tx, error) {
	m.begins++
	return &memTx{store: m, work: m.state.clone()}, nil
}

type memTx struct {
	store *memStore
	work  *memState
	saved map[string]*memState
	done  bool
}

var errTxDone = errors.New("transaction already finished")

func (t *memTx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.state = t.work
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	return nil
}

func (t *memTx) Savepoint(_ context.Context, name string) error {
	if t.saved == nil {
		t.saved = map[string]*memState{}
	}
	t.saved[name] = t.work.clone()
	return nil
}

func (t *memTx) RollbackTo(_ context.Context, name string) error {
	s, ok := t.saved[name]
	if !ok {
		return fmt.Errorf("no savepoint %s", name)
	}
	t.work = s.clone()
	return nil
}

func (t *memTx) id() uint64 {
	t.work.nextID++
	return t.work.nextID
}

func (t *memTx) UserByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range t.work.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, errors.New("not found")
}

func (t *memTx) UserTenant(_ context.Context, id uint64) (*uint64, error) {
	return t.work.users[id].TenantID, nil
}

func (t *memTx) OrphanUsers(_ context.Context, email string) ([]model.User, error) {
	var out []model.User
	for _, u := range t.work.users {
		if u.TenantID == nil && (email == "" || u.Email == email) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateTenant(_ context.Context, tn *model.Tenant) error {
	tn.ID = t.id()
	t.work.tenants[tn.ID] = *tn
	return nil
}

func (t *memTx) CreateRoles(_ context.Context, tenantID uint64, roles []model.Role) ([]model.Role, error) {
	out := make([]model.Role, len(roles))
	for i, r := range roles {
		r.ID = t.id()
		r.TenantID = tenantID
		t.work.roles[r.ID] = r
		out[i] = r
	}
	return out, nil
}

func (t *memTx) AssignTenant(_ context.Context, userID, tenantID, roleID uint64, joinedAt time.Time) error {
	u, ok := t.work.users[userID]
	if !ok {
		return errors.New("no user")
	}
	u.TenantID, u.RoleID, u.IsActiveInTenant, u.JoinedAt = &tenantID, &roleID, true, &joinedAt
	t.work.users[userID] = u
	return nil
}

func (t *memTx) CustomerTenant(_ context.Context, id uint64) (*uint64, error) {
	return t.work.customers[id].TenantID, nil
}

func (t *memTx) RecordingTenant(_ context.Context, id uint64) (*uint64, error) {
	return t.work.recordings[id].TenantID, nil
}

func owned(filter, userID *uint64) bool {
	return filter == nil || (userID != nil && *userID == *filter)
}

func (t *memTx) PendingCustomers(_ context.Context, owner *uint64) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range t.work.customers {
		if owned(owner, c.UserID) && (c.TenantID == nil || c.CreatedBy == nil || c.PrimaryOwner == nil) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) PendingRecordings(_ context.Context, owner *uint64) ([]model.Recording, error) {
	if t.store.failRecording != nil {
		return nil, t.store.failRecording
	}
	var out []model.Recording
	for _, r := range t.work.recordings {
		if owned(owner, r.UserID) && (r.TenantID == nil || r.UploadedBy == nil) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) PendingReports(_ context.Context, owner *uint64) ([]model.Report, error) {
	var out []model.Report
	for _, r := range t.work.reports {
		if owned(owner, r.UserID) && (r.TenantID == nil || r.CreatedBy == nil) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) PendingSalesRooms(_ context.Context, owner *uint64) ([]model.SalesRoom, error) {
	var out []model.SalesRoom
	for _, r := range t.work.rooms {
		if owned(owner, r.UserID) && (r.TenantID == nil || r.CreatedBy == nil) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) UpdateCustomer(_ context.Context, c *model.Customer) error {
	if t.store.failCustomer[c.ID] {
		return fmt.Errorf("customer %d: constraint violation", c.ID)
	}
	t.work.customers[c.ID] = *c
	return nil
}

func (t *memTx) UpdateRecording(_ context.Context, r *model.Recording) error {
	t.work.recordings[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReport(_ context.Context, r *model.Report) error {
	t.work.reports[r.ID] = *r
	return nil
}

func (t *memTx) UpdateSalesRoom(_ context.Context, s *model.SalesRoom) error {
	t.work.rooms[s.ID] = *s
	return nil
}
