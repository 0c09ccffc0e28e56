package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyByText(t *testing.T) {
	cases := map[string]Kind{
		"request timed out":         KindTransient,
		"rate limit exceeded":       KindTransient,
		"HTTP 503 Service Unavail":  KindTransient,
		"unauthorized: bad token":   KindAuth,
		"403 forbidden":             KindAuth,
		"content policy violation":  KindPolicy,
		"invalid request: bad json": KindValidation,
	}
	for msg, want := range cases {
		assert.Equal(t, want, Classify(errors.New(msg)), msg)
	}
}

func TestWithStatusReclassifies(t *testing.T) {
	err := New("openai", errors.New("boom")).WithStatus(500)
	assert.Equal(t, KindTransient, err.Kind)

	err = New("openai", errors.New("boom")).WithStatus(401)
	assert.Equal(t, KindAuth, err.Kind)

	err = New("openai", errors.New("boom")).WithStatus(400)
	assert.Equal(t, KindValidation, err.Kind)
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindTransient.Retryable())
	assert.True(t, KindTransient.OpensBreaker())
	assert.True(t, KindTransient.Failover())

	assert.False(t, KindAuth.Retryable())
	assert.False(t, KindAuth.OpensBreaker())
	assert.True(t, KindAuth.Failover())

	assert.False(t, KindPolicy.Failover())
	assert.False(t, KindValidation.Failover())
}

func TestAsExtractsProviderError(t *testing.T) {
	perr := New("anthropic", errors.New("rate limit")).WithCode("rate_limit_error")
	wrapped := errors.New("wrap: " + perr.Error())
	_, ok := As(wrapped)
	assert.False(t, ok, "plain string wrap should not unwrap")

	got, ok := As(perr)
	assert.True(t, ok)
	assert.Equal(t, KindTransient, got.Kind)
}
