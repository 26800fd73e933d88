package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/metrics"
	"github.com/iliyamo/sales-tenancy/internal/model"
)

// Options control one backfill run.
type Options struct {
	DryRun  bool   // compute everything, commit nothing
	Verbose bool   // log every record at info level
	Email   string // restrict the run to this user and their records
}

// Orchestrator runs the four backfill phases in order.
type Orchestrator struct {
	store Store
	now   func() time.Time
}

// New returns an Orchestrator over store.
func New(store Store) *Orchestrator {
	return &Orchestrator{store: store, now: func() time.Time { return time.Now().UTC() }}
}

const recordSavepoint = "backfill_record"

type phaseFunc func(ctx context.Context, tx Tx, r *run) error

// run carries per-invocation state through the phases.
type run struct {
	opts    Options
	owner   *uint64
	log     *zap.Logger
	now     time.Time
	summary *PhaseSummary

	userTenants map[uint64]*uint64
}

// Run executes phases 1 to 4.  A real run commits each phase in its own
// transaction.  A dry run executes all phases inside one transaction and
// rolls it back, so later phases see earlier phases' writes exactly as
// in a real run and the reported counts match.  A phase that cannot
// complete is rolled back and reported as *PhaseError; later phases do
// not run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	log := logger.FromContext(ctx).With(zap.Bool("dry_run", opts.DryRun))
	if opts.Email != "" {
		log = log.With(zap.String("email", opts.Email))
	}
	sum := Summary{DryRun: opts.DryRun}

	r := &run{opts: opts, log: log, now: o.now()}
	if opts.Email != "" {
		id, err := o.lookupOwner(ctx, opts.Email)
		if err != nil {
			return sum, err
		}
		r.owner = &id
	}

	phases := []struct {
		phase Phase
		fn    phaseFunc
	}{
		{PhaseTenants, provisionTenants},
		{PhaseCustomers, linkCustomers},
		{PhaseContent, linkContent},
		{PhaseSalesRooms, linkSalesRooms},
	}

	if opts.DryRun {
		tx, err := o.store.Begin(ctx)
		if err != nil {
			return sum, &PhaseError{Phase: PhaseTenants, Err: err}
		}
		defer func() { _ = tx.Rollback() }()
		for _, p := range phases {
			ps, err := r.execute(ctx, tx, p.phase, p.fn)
			if err != nil {
				return sum, &PhaseError{Phase: p.phase, Err: err}
			}
			sum.Phases = append(sum.Phases, ps)
		}
		log.Info("dry run finished, changes rolled back")
		return sum, nil
	}

	for _, p := range phases {
		tx, err := o.store.Begin(ctx)
		if err != nil {
			return sum, &PhaseError{Phase: p.phase, Err: err}
		}
		ps, err := r.execute(ctx, tx, p.phase, p.fn)
		if err != nil {
			_ = tx.Rollback()
			log.Error("phase aborted", zap.Stringer("phase", p.phase), zap.Error(err))
			return sum, &PhaseError{Phase: p.phase, Err: err}
		}
		if err := tx.Commit(); err != nil {
			return sum, &PhaseError{Phase: p.phase, Err: fmt.Errorf("commit: %w", err)}
		}
		observe(ps)
		sum.Phases = append(sum.Phases, ps)
	}
	return sum, nil
}

func (o *Orchestrator) lookupOwner(ctx context.Context, email string) (uint64, error) {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	u, err := tx.UserByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	return u.ID, nil
}

func (r *run) execute(ctx context.Context, tx Tx, p Phase, fn phaseFunc) (PhaseSummary, error) {
	ps := PhaseSummary{Phase: p}
	r.summary = &ps
	r.userTenants = make(map[uint64]*uint64)
	r.log.Info("phase started", zap.Stringer("phase", p))
	if err := fn(ctx, tx, r); err != nil {
		return ps, err
	}
	r.log.Info("phase finished",
		zap.Stringer("phase", p),
		zap.Int("created", ps.Created),
		zap.Int("linked", ps.Linked),
		zap.Int("skipped", ps.Skipped),
		zap.Int("errored", ps.Errored),
	)
	return ps, nil
}

func observe(ps PhaseSummary) {
	name := ps.Phase.String()
	metrics.BackfillRecordCounter.WithLabelValues(name, "created").Add(float64(ps.Created))
	metrics.BackfillRecordCounter.WithLabelValues(name, "linked").Add(float64(ps.Linked))
	metrics.BackfillRecordCounter.WithLabelValues(name, "skipped").Add(float64(ps.Skipped))
	metrics.BackfillRecordCounter.WithLabelValues(name, "errored").Add(float64(ps.Errored))
}

// record runs fn behind a savepoint.  A failing fn is rolled back,
// logged with the entity and id, and counted; it does not stop the
// phase.  ok reports whether fn succeeded.  A savepoint failure aborts
// the phase.
func (r *run) record(ctx context.Context, tx Tx, entity string, id uint64, fn func() error) (ok bool, err error) {
	if err := tx.Savepoint(ctx, recordSavepoint); err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}
	if ferr := fn(); ferr != nil {
		if err := tx.RollbackTo(ctx, recordSavepoint); err != nil {
			return false, fmt.Errorf("rollback to savepoint: %w", err)
		}
		r.summary.Errored++
		r.log.Warn("backfill record failed",
			zap.String("entity", entity), zap.Uint64("id", id), zap.Error(ferr))
		return false, nil
	}
	return true, nil
}

func (r *run) skip(entity string, id uint64, reason error) {
	r.summary.Skipped++
	r.log.Warn("backfill record skipped",
		zap.String("entity", entity), zap.Uint64("id", id), zap.Error(reason))
}

func (r *run) progress(msg, entity string, id uint64, tenant uint64) {
	fields := []zap.Field{zap.String("entity", entity), zap.Uint64("id", id), zap.Uint64("tenant_id", tenant)}
	if r.opts.Verbose {
		r.log.Info(msg, fields...)
		return
	}
	r.log.Debug(msg, fields...)
}

func (r *run) userTenant(ctx context.Context, tx Tx, userID *uint64) (*uint64, error) {
	if userID == nil {
		return nil, nil
	}
	if t, ok := r.userTenants[*userID]; ok {
		return t, nil
	}
	t, err := tx.UserTenant(ctx, *userID)
	if err != nil {
		return nil, err
	}
	r.userTenants[*userID] = t
	return t, nil
}

func optional(ctx context.Context, id *uint64, lookup func(context.Context, uint64) (*uint64, error)) (*uint64, error) {
	if id == nil {
		return nil, nil
	}
	return lookup(ctx, *id)
}

// provisionTenants gives every user without a tenant their own company,
// the default role set and the Owner role.  Users that already have a
// tenant are never listed, which keeps the phase idempotent.
func provisionTenants(ctx context.Context, tx Tx, r *run) error {
	users, err := tx.OrphanUsers(ctx, r.opts.Email)
	if err != nil {
		return fmt.Errorf("list users without tenant: %w", err)
	}
	for _, u := range users {
		if u.TenantID != nil {
			continue
		}
		userID := u.ID
		var tenant model.Tenant
		ok, err := r.record(ctx, tx, "user", userID, func() error {
			tenant = model.Tenant{
				Name:      model.CompanyNameFor(u.Email),
				IsActive:  true,
				CreatedAt: r.now,
				CreatedBy: &userID,
			}
			if err := tx.CreateTenant(ctx, &tenant); err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}
			roles, err := tx.CreateRoles(ctx, tenant.ID, model.DefaultRoles())
			if err != nil {
				return fmt.Errorf("create roles: %w", err)
			}
			var ownerRole *model.Role
			for i := range roles {
				if roles[i].Name == model.RoleOwner {
					ownerRole = &roles[i]
				}
			}
			if ownerRole == nil {
				return errors.New("owner role missing from default set")
			}
			return tx.AssignTenant(ctx, userID, tenant.ID, ownerRole.ID, r.now)
		})
		if err != nil {
			return err
		}
		if ok {
			r.summary.Created++
			r.summary.Linked++
			r.progress("tenant provisioned", "user", userID, tenant.ID)
		}
	}
	return nil
}

// linkCustomers sets tenant, creator and primary owner on customers from
// their legacy owner.
func linkCustomers(ctx context.Context, tx Tx, r *run) error {
	customers, err := tx.PendingCustomers(ctx, r.owner)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	for i := range customers {
		c := &customers[i]
		if c.UserID == nil {
			r.skip("customer", c.ID, errors.New("no owning user"))
			continue
		}
		ownerTenant, err := r.userTenant(ctx, tx, c.UserID)
		if err != nil {
			r.summary.Errored++
			r.log.Warn("owner lookup failed", zap.String("entity", "customer"), zap.Uint64("id", c.ID), zap.Error(err))
			continue
		}
		tenant := ResolveTenant(c.TenantID, ownerTenant)
		if tenant == nil {
			r.skip("customer", c.ID, ErrUnresolvableTenant)
			continue
		}
		changed := false
		if c.TenantID == nil {
			c.TenantID, changed = tenant, true
		}
		if c.CreatedBy == nil {
			c.CreatedBy, changed = c.UserID, true
		}
		if c.PrimaryOwner == nil {
			c.PrimaryOwner, changed = c.UserID, true
		}
		if !changed {
			continue
		}
		ok, err := r.record(ctx, tx, "customer", c.ID, func() error { return tx.UpdateCustomer(ctx, c) })
		if err != nil {
			return err
		}
		if ok {
			r.summary.Linked++
			r.progress("customer linked", "customer", c.ID, *tenant)
		}
	}
	return nil
}

// linkContent backfills recordings, then reports.  A recording's tenant
// comes from its owner, else its customer.  A report's tenant comes from
// its owner, else its recording, else its customer.  Recordings run first
// so reports can cascade from them.
func linkContent(ctx context.Context, tx Tx, r *run) error {
	recordings, err := tx.PendingRecordings(ctx, r.owner)
	if err != nil {
		return fmt.Errorf("list recordings: %w", err)
	}
	for i := range recordings {
		rec := &recordings[i]
		tenant, err := r.cascade(ctx, tx, rec.TenantID, rec.UserID,
			func() (*uint64, error) { return optional(ctx, rec.CustomerID, tx.CustomerTenant) },
		)
		if err != nil {
			r.summary.Errored++
			r.log.Warn("tenant lookup failed", zap.String("entity", "recording"), zap.Uint64("id", rec.ID), zap.Error(err))
			continue
		}
		if err := r.apply(ctx, tx, "recording", rec.ID, tenant, func() bool {
			changed := false
			if rec.TenantID == nil {
				rec.TenantID, changed = tenant, true
			}
			if rec.UploadedBy == nil && rec.UserID != nil {
				rec.UploadedBy, changed = rec.UserID, true
			}
			return changed
		}, func() error { return tx.UpdateRecording(ctx, rec) }); err != nil {
			return err
		}
	}

	reports, err := tx.PendingReports(ctx, r.owner)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	for i := range reports {
		rep := &reports[i]
		tenant, err := r.cascade(ctx, tx, rep.TenantID, rep.UserID,
			func() (*uint64, error) { return optional(ctx, rep.RecordingID, tx.RecordingTenant) },
			func() (*uint64, error) { return optional(ctx, rep.CustomerID, tx.CustomerTenant) },
		)
		if err != nil {
			r.summary.Errored++
			r.log.Warn("tenant lookup failed", zap.String("entity", "report"), zap.Uint64("id", rep.ID), zap.Error(err))
			continue
		}
		if err := r.apply(ctx, tx, "report", rep.ID, tenant, func() bool {
			changed := false
			if rep.TenantID == nil {
				rep.TenantID, changed = tenant, true
			}
			if rep.CreatedBy == nil && rep.UserID != nil {
				rep.CreatedBy, changed = rep.UserID, true
			}
			return changed
		}, func() error { return tx.UpdateReport(ctx, rep) }); err != nil {
			return err
		}
	}
	return nil
}

// linkSalesRooms backfills sales rooms from their owner, else their
// customer.  It runs after linkContent so tenants resolved there are
// visible to the cascade.
func linkSalesRooms(ctx context.Context, tx Tx, r *run) error {
	rooms, err := tx.PendingSalesRooms(ctx, r.owner)
	if err != nil {
		return fmt.Errorf("list sales rooms: %w", err)
	}
	for i := range rooms {
		room := &rooms[i]
		tenant, err := r.cascade(ctx, tx, room.TenantID, room.UserID,
			func() (*uint64, error) { return optional(ctx, room.CustomerID, tx.CustomerTenant) },
		)
		if err != nil {
			r.summary.Errored++
			r.log.Warn("tenant lookup failed", zap.String("entity", "sales_room"), zap.Uint64("id", room.ID), zap.Error(err))
			continue
		}
		if err := r.apply(ctx, tx, "sales_room", room.ID, tenant, func() bool {
			changed := false
			if room.TenantID == nil {
				room.TenantID, changed = tenant, true
			}
			if room.CreatedBy == nil && room.UserID != nil {
				room.CreatedBy, changed = room.UserID, true
			}
			return changed
		}, func() error { return tx.UpdateSalesRoom(ctx, room) }); err != nil {
			return err
		}
	}
	return nil
}

// cascade resolves a tenant from the record itself, its owner and then
// each relation in order.  Relations are only consulted while nothing
// earlier resolved.
func (r *run) cascade(ctx context.Context, tx Tx, direct, ownerID *uint64, relations ...func() (*uint64, error)) (*uint64, error) {
	if direct != nil {
		return direct, nil
	}
	ownerTenant, err := r.userTenant(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if ownerTenant != nil {
		return ownerTenant, nil
	}
	for _, rel := range relations {
		t, err := rel()
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

// apply skips records without a resolvable tenant, lets mutate fill the
// missing fields and persists the record when anything changed.
func (r *run) apply(ctx context.Context, tx Tx, entity string, id uint64, tenant *uint64, mutate func() bool, save func() error) error {
	if tenant == nil {
		r.skip(entity, id, ErrUnresolvableTenant)
		return nil
	}
	if !mutate() {
		return nil
	}
	ok, err := r.record(ctx, tx, entity, id, save)
	if err != nil {
		return err
	}
	if ok {
		r.summary.Linked++
		r.progress(entity+" linked", entity, id, *tenant)
	}
	return nil
}
