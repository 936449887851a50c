package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

func TestStateManager_DefaultStateWhenMissing(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	stateManager := NewStateManager(cfg, redisClient, zap.NewNop())

	state, err := stateManager.GetState(context.Background(), "user-1", models.SignalHeartRate)

	require.NoError(t, err)
	assert.Equal(t, "user-1", state.UserID)
	assert.Equal(t, models.SignalHeartRate, state.Kind)
	assert.Equal(t, models.TierNormal, state.CurrentTier)
	assert.Equal(t, 0, state.ConsecutivePeriods)
	assert.Nil(t, state.FirstDeviationAt)
}

func TestStateManager_RoundTrip(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	stateManager := NewStateManager(cfg, redisClient, zap.NewNop())

	ctx := context.Background()
	firstAt := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	state := models.PersistenceState{
		UserID:             "user-1",
		Kind:               models.SignalHRV,
		CurrentTier:        models.TierModerate,
		ConsecutivePeriods: 4,
		FirstDeviationAt:   &firstAt,
	}

	require.NoError(t, stateManager.SetState(ctx, state))

	loaded, err := stateManager.GetState(ctx, "user-1", models.SignalHRV)
	require.NoError(t, err)
	assert.Equal(t, models.TierModerate, loaded.CurrentTier)
	assert.Equal(t, 4, loaded.ConsecutivePeriods)
	require.NotNil(t, loaded.FirstDeviationAt)
	assert.True(t, loaded.FirstDeviationAt.Equal(firstAt))
}

func TestStateManager_StatesIsolatedPerKind(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	stateManager := NewStateManager(cfg, redisClient, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, stateManager.SetState(ctx, models.PersistenceState{
		UserID: "user-1", Kind: models.SignalHeartRate,
		CurrentTier: models.TierSevere, ConsecutivePeriods: 7,
	}))

	states, err := stateManager.GetStates(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, states, len(models.AllSignalKinds))

	assert.Equal(t, 7, states[models.SignalHeartRate].ConsecutivePeriods)
	assert.Equal(t, 0, states[models.SignalHRV].ConsecutivePeriods)
	assert.Equal(t, models.TierNormal, states[models.SignalHRV].CurrentTier)
}

func TestStateManager_KeyFormat(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	stateManager := NewStateManager(cfg, redisClient, zap.NewNop())

	key := stateManager.GetStateKey("user-1", models.SignalBloodSugar)
	assert.Equal(t, "care:state:user-1:blood_sugar", key)
}
