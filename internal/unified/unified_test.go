package unified

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsEmptyMessages(t *testing.T) {
	req := &Request{}
	err := req.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "messages", verr.Field)
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	req := &Request{Messages: []Message{{Role: "narrator", Content: "hi"}}}
	err := req.Validate()
	require.Error(t, err)
}

func TestValidateRejectsEmptyContent(t *testing.T) {
	req := &Request{Messages: []Message{{Role: RoleUser, Content: ""}}}
	require.Error(t, req.Validate())
}

func TestValidateTemperatureBounds(t *testing.T) {
	tooHigh := 2.5
	req := &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}, Temperature: &tooHigh}
	require.Error(t, req.Validate())

	tooLow := -0.1
	req.Temperature = &tooLow
	require.Error(t, req.Validate())

	ok := 0.7
	req.Temperature = &ok
	require.NoError(t, req.Validate())
}

func TestValidateAcceptsMinimalRequest(t *testing.T) {
	req := &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	assert.NoError(t, req.Validate())
}

func TestValidateRejectsNegativeMaxTokens(t *testing.T) {
	req := &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}, MaxTokens: -1}
	require.Error(t, req.Validate())
}
