package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sales-tenancy/internal/migration"
)

type fakeBackfill struct {
	got migration.Options
	sum migration.Summary
	err error
}

func (f *fakeBackfill) Run(_ context.Context, opts migration.Options) (migration.Summary, error) {
	f.got = opts
	f.sum.DryRun = opts.DryRun
	return f.sum, f.err
}

func run(t *testing.T, f *fakeBackfill, args ...string) (string, error) {
	t.Helper()
	released := false
	connect := func(context.Context) (backfiller, func(), error) {
		return f, func() { released = true }, nil
	}
	var out bytes.Buffer
	cmd := newRootCmd(connect, &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	assert.True(t, released)
	return out.String(), err
}

func TestFlagsReachOrchestrator(t *testing.T) {
	f := &fakeBackfill{sum: migration.Summary{Phases: []migration.PhaseSummary{
		{Phase: migration.PhaseTenants, Created: 2},
		{Phase: migration.PhaseCustomers, Linked: 5, Skipped: 1},
	}}}
	out, err := run(t, f, "--dry-run", "--verbose", "--email", "ana@example.com", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, migration.Options{DryRun: true, Verbose: true, Email: "ana@example.com"}, f.got)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "dry run: no changes were committed")
}

func TestPhaseErrorFailsCommand(t *testing.T) {
	f := &fakeBackfill{
		sum: migration.Summary{Phases: []migration.PhaseSummary{{Phase: migration.PhaseTenants, Created: 1}}},
		err: &migration.PhaseError{Phase: migration.PhaseCustomers, Err: errors.New("deadlock")},
	}
	out, err := run(t, f, "--json", "--log-level", "error")
	var pe *migration.PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, migration.PhaseCustomers, pe.Phase)

	var got runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.RunID)
	require.Len(t, got.Phases, 1)
	assert.Equal(t, "tenants", got.Phases[0].Phase)
	assert.Contains(t, got.Error, "customers")
}

func TestConnectFailure(t *testing.T) {
	connect := func(context.Context) (backfiller, func(), error) { return nil, nil, errors.New("refused") }
	cmd := newRootCmd(connect, &bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "error"})
	assert.ErrorContains(t, cmd.Execute(), "refused")
}
