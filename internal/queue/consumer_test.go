package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls [][3]any
}

func (r *recorder) ManagerChanged(_ context.Context, userID uint64, oldManager, newManager *uint64) error {
	r.calls = append(r.calls, [3]any{userID, oldManager, newManager})
	return nil
}

func TestHandleMessageAppliesEvent(t *testing.T) {
	old, neu := uint64(2), uint64(3)
	body, err := json.Marshal(ManagerChangedEvent{
		UserID: 5, TenantID: 1, OldManagerID: &old, NewManagerID: &neu, ChangedAt: time.Now(),
	})
	require.NoError(t, err)

	var r recorder
	require.NoError(t, HandleMessage(context.Background(), ManagerChangedType, body, &r))
	require.Len(t, r.calls, 1)
	assert.Equal(t, uint64(5), r.calls[0][0])
	assert.Equal(t, uint64(2), *r.calls[0][1].(*uint64))
	assert.Equal(t, uint64(3), *r.calls[0][2].(*uint64))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	var r recorder
	assert.Error(t, HandleMessage(context.Background(), ManagerChangedType, []byte("{"), &r))
	assert.Error(t, HandleMessage(context.Background(), "", []byte(`{}`), &r))
	assert.NoError(t, HandleMessage(context.Background(), "something.else", []byte("{"), &r))
	assert.Empty(t, r.calls)
}
