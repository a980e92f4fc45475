package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTiered(t *testing.T, primary Store, secondaries ...Backend) *Tiered {
	t.Helper()
	router := newTestRouter(t, PutPolicyAny, secondaries...)
	tiered, err := NewTiered(Backend{Name: "primary", Store: primary}, router, nil)
	require.NoError(t, err)
	return tiered
}

func TestTieredPromotesSecondaryHit(t *testing.T) {
	primary := newTestFileStore(t)
	secondary := NewObjectStoreWithAPI(newMemoryObjectAPI(), "bucket", "", nil)
	tiered := newTestTiered(t, primary, Backend{Name: "remote", Store: secondary})
	ctx := context.Background()

	// 绕过主后端直接写入次级。
	require.NoError(t, secondary.Put(ctx, testHash, []byte("slow tier value")))

	res, err := tiered.Get(ctx, testHash)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.True(t, res.Promoted)
	require.Equal(t, "remote", res.Backend)
	require.Equal(t, []byte("slow tier value"), res.Value)

	promoted, err := primary.Get(ctx, testHash)
	require.NoError(t, err)
	require.Equal(t, []byte("slow tier value"), promoted)
}

func TestTieredPrimaryHitSkipsSecondary(t *testing.T) {
	primary := newMemoryStore()
	primary.values[testHash] = []byte("fast")
	secondary := newMemoryStore()
	tiered := newTestTiered(t, primary, Backend{Name: "remote", Store: secondary})

	res, err := tiered.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.Equal(t, "primary", res.Backend)
	require.False(t, res.Promoted)
	require.Zero(t, secondary.gets)
}

func TestTieredPromotionFailureIsNotSurfaced(t *testing.T) {
	primary := newMemoryStore()
	primary.putErr = errBackendDown
	secondary := newMemoryStore()
	secondary.values[testHash] = []byte("value")
	tiered := newTestTiered(t, primary, Backend{Name: "remote", Store: secondary})

	res, err := tiered.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.False(t, res.Promoted)
	require.Equal(t, []byte("value"), res.Value)
}

func TestTieredPrimaryErrorFallsBackToSecondary(t *testing.T) {
	primary := newMemoryStore()
	primary.getErr = errBackendDown
	secondary := newMemoryStore()
	secondary.values[testHash] = []byte("value")
	tiered := newTestTiered(t, primary, Backend{Name: "remote", Store: secondary})

	res, err := tiered.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, StatusError, res.Outcomes[0].Status)
	require.Equal(t, StatusHit, res.Outcomes[1].Status)
}

func TestTieredMiss(t *testing.T) {
	tiered := newTestTiered(t, newMemoryStore(), Backend{Name: "remote", Store: newMemoryStore()})

	res, err := tiered.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.False(t, res.Found)
	require.Len(t, res.Outcomes, 2)
}

func TestTieredPutFailsOnlyWhenBothTiersFail(t *testing.T) {
	ctx := context.Background()

	primary := newMemoryStore()
	primary.putErr = errBackendDown
	secondary := newMemoryStore()
	tiered := newTestTiered(t, primary, Backend{Name: "remote", Store: secondary})

	res, err := tiered.Put(ctx, testHash, []byte("value"))
	require.NoError(t, err)
	require.Error(t, res.Warning)
	require.Contains(t, res.Warning.Error(), "primary")
	require.True(t, secondary.has(testHash))

	brokenSecondary := newMemoryStore()
	brokenSecondary.putErr = errBackendDown
	tiered = newTestTiered(t, primary, Backend{Name: "remote", Store: brokenSecondary})

	_, err = tiered.Put(ctx, testHash, []byte("value"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "primary")
	require.Contains(t, err.Error(), "remote")
}

func TestTieredPutSecondaryFailureIsWarning(t *testing.T) {
	primary := newMemoryStore()
	secondary := newMemoryStore()
	secondary.putErr = errBackendDown
	tiered := newTestTiered(t, primary, Backend{Name: "remote", Store: secondary})

	res, err := tiered.Put(context.Background(), testHash, []byte("value"))
	require.NoError(t, err)
	require.Contains(t, res.Warning.Error(), "remote")
	require.Equal(t, []byte("value"), primary.value(testHash))
	require.Len(t, res.Outcomes, 2)
	require.Equal(t, "remote", res.Outcomes[1].Backend)
}

func TestTieredWithoutSecondariesReliesOnPrimary(t *testing.T) {
	primary := newMemoryStore()
	primary.putErr = errBackendDown
	tiered := newTestTiered(t, primary)

	_, err := tiered.Put(context.Background(), testHash, []byte("value"))
	require.Error(t, err)
}

func TestNewTieredRejectsOverlap(t *testing.T) {
	router := newTestRouter(t, PutPolicyAny, Backend{Name: "primary", Store: newMemoryStore()})
	_, err := NewTiered(Backend{Name: "primary", Store: newMemoryStore()}, router, nil)
	require.Error(t, err)
}

func TestTieredPutPolicyAllKeepsSuccessfulSecondaryOutcomes(t *testing.T) {
	primary := newMemoryStore()
	ok := newMemoryStore()
	bad := newMemoryStore()
	bad.putErr = errBackendDown
	router := newTestRouter(t, PutPolicyAll,
		Backend{Name: "ok", Store: ok},
		Backend{Name: "bad", Store: bad},
	)
	tiered, err := NewTiered(Backend{Name: "primary", Store: primary}, router, nil)
	require.NoError(t, err)

	res, err := tiered.Put(context.Background(), testHash, []byte("value"))
	require.NoError(t, err)
	require.ErrorIs(t, res.Warning, errBackendDown)
	require.True(t, ok.has(testHash))

	statuses := make(map[string]Status, len(res.Outcomes))
	for _, o := range res.Outcomes {
		statuses[o.Backend] = o.Status
	}
	require.Equal(t, map[string]Status{
		"primary": StatusStored,
		"bad":     StatusError,
		"ok":      StatusStored,
	}, statuses)
}
