package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taipm/evalrouter/internal/plugin"
)

func TestResolveToolCallGetPersonProfile(t *testing.T) {
	p := NewProfileFetchPlugin()
	req := &plugin.Request{Action: "get_person_profile", Parameters: map[string]interface{}{"linkedin_username": "john-doe"}}

	tool, args, err := p.resolveToolCall(req)
	require.NoError(t, err)
	assert.Equal(t, "get_person_profile", tool)
	assert.Equal(t, "john-doe", args["linkedin_username"])
}

func TestResolveToolCallExtractsUsernameFromURL(t *testing.T) {
	p := NewProfileFetchPlugin()
	req := &plugin.Request{Action: "profile", Parameters: map[string]interface{}{"url": "https://www.linkedin.com/in/jane-doe/"}}

	tool, args, err := p.resolveToolCall(req)
	require.NoError(t, err)
	assert.Equal(t, "get_person_profile", tool)
	assert.Equal(t, "jane-doe", args["linkedin_username"])
}

func TestResolveToolCallCompanyRequiresName(t *testing.T) {
	p := NewProfileFetchPlugin()
	req := &plugin.Request{Action: "company", Parameters: map[string]interface{}{}}

	_, _, err := p.resolveToolCall(req)
	assert.Error(t, err)
}

func TestResolveToolCallCompanyWithEmployees(t *testing.T) {
	p := NewProfileFetchPlugin()
	req := &plugin.Request{Action: "get_company", Parameters: map[string]interface{}{
		"company_name":  "acme",
		"get_employees": true,
	}}

	tool, args, err := p.resolveToolCall(req)
	require.NoError(t, err)
	assert.Equal(t, "get_company_profile", tool)
	assert.Equal(t, "acme", args["company_name"])
	assert.Equal(t, true, args["get_employees"])
}

func TestResolveToolCallUnknownAction(t *testing.T) {
	p := NewProfileFetchPlugin()
	req := &plugin.Request{Action: "frobnicate", Parameters: map[string]interface{}{}}

	_, _, err := p.resolveToolCall(req)
	assert.Error(t, err)
}

func TestExtractUsernameFromURL(t *testing.T) {
	assert.Equal(t, "johndoe", extractUsernameFromURL("https://linkedin.com/in/johndoe"))
	assert.Equal(t, "", extractUsernameFromURL("https://linkedin.com/company/acme"))
}

func TestLooksLikeLoginFailure(t *testing.T) {
	assert.True(t, looksLikeLoginFailure("Login required to continue"))
	assert.True(t, looksLikeLoginFailure("401 Unauthorized"))
	assert.False(t, looksLikeLoginFailure("profile not found"))
}
