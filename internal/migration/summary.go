package migration

import (
	"errors"
	"fmt"
)

// Phase identifies one backfill phase.
type Phase int

const (
	PhaseTenants Phase = iota + 1
	PhaseCustomers
	PhaseContent
	PhaseSalesRooms
)

func (p Phase) String() string {
	switch p {
	case PhaseTenants:
		return "tenants"
	case PhaseCustomers:
		return "customers"
	case PhaseContent:
		return "content"
	case PhaseSalesRooms:
		return "sales_rooms"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// PhaseSummary holds the counts one phase reports.  Created counts new
// tenants (phase 1 only), Linked counts updated records, Skipped counts
// records that cannot be backfilled and Errored counts records whose
// write failed.
type PhaseSummary struct {
	Phase   Phase
	Created int
	Linked  int
	Skipped int
	Errored int
}

// Summary is the result of a run.  Phases holds one entry per completed
// phase in execution order.
type Summary struct {
	DryRun bool
	Phases []PhaseSummary
}

// Phase returns the summary of p, zero-valued if p did not complete.
func (s Summary) Phase(p Phase) PhaseSummary {
	for _, ps := range s.Phases {
		if ps.Phase == p {
			return ps
		}
	}
	return PhaseSummary{Phase: p}
}

// TotalCreated sums Created over all phases.
func (s Summary) TotalCreated() int {
	n := 0
	for _, p := range s.Phases {
		n += p.Created
	}
	return n
}

// TotalLinked sums Linked over all phases.
func (s Summary) TotalLinked() int {
	n := 0
	for _, p := range s.Phases {
		n += p.Linked
	}
	return n
}

// TotalSkipped sums Skipped and Errored over all phases.
func (s Summary) TotalSkipped() int {
	n := 0
	for _, p := range s.Phases {
		n += p.Skipped + p.Errored
	}
	return n
}

var (
	// ErrUnknownUser is returned when the email filter names no user.
	ErrUnknownUser = errors.New("migration: no user with that email")
	// ErrUnresolvableTenant marks a record no owner or relation maps to a tenant.
	ErrUnresolvableTenant = errors.New("migration: tenant cannot be resolved")
)

// PhaseError reports a phase that aborted as a whole.  Nothing the phase
// wrote was committed.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s aborted: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
