package memadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/flexigate/internal/unified"
)

func TestAlwaysSucceedFillsProviderName(t *testing.T) {
	a := New("openai", "gpt-4o-mini", AlwaysSucceed("hi"))
	resp, err := a.Invoke(context.Background(), unified.Request{})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "hi", resp.Content)
}

func TestFailNTimesThenSucceed(t *testing.T) {
	boom := errors.New("boom")
	a := New("openai", "gpt-4o-mini", FailNTimesThenSucceed(2, boom, "ok"))

	_, err := a.Invoke(context.Background(), unified.Request{})
	assert.ErrorIs(t, err, boom)
	_, err = a.Invoke(context.Background(), unified.Request{})
	assert.ErrorIs(t, err, boom)
	resp, err := a.Invoke(context.Background(), unified.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	assert.Equal(t, 3, a.CallCount())
}

func TestInvokeHonorsCancelledContext(t *testing.T) {
	a := New("openai", "gpt-4o-mini", AlwaysSucceed("hi"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Invoke(ctx, unified.Request{})
	assert.Error(t, err)
}

func TestSetHealthyOverridesHealthCheck(t *testing.T) {
	a := New("openai", "gpt-4o-mini", AlwaysSucceed("hi"))
	assert.True(t, a.HealthCheck(context.Background()))
	a.SetHealthy(false)
	assert.False(t, a.HealthCheck(context.Background()))
}

func TestSetScriptSwapsBehaviorMidTest(t *testing.T) {
	boom := errors.New("boom")
	a := New("openai", "gpt-4o-mini", AlwaysFail(boom))
	_, err := a.Invoke(context.Background(), unified.Request{})
	assert.ErrorIs(t, err, boom)

	a.SetScript(AlwaysSucceed("recovered"))
	resp, err := a.Invoke(context.Background(), unified.Request{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
}
