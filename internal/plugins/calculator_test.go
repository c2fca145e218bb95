package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/plugin"
)

func TestCalculatorBasicArithmetic(t *testing.T) {
	p := NewCalculatorPlugin()

	cases := []struct {
		expr     string
		want     float64
		wantType string
	}{
		{"2 * (3 + 4)", 14, "int"},
		{"2 ** 10", 1024, "int"},
		{"10 % 3", 1, "int"},
		{"sqrt(16) + log10(100)", 6, "int"},
		{"pi", 3.141592653589793, "float64"},
		{"abs(-5)", 5, "int"},
		{"round(2.6)", 3, "int"},
	}

	for _, tc := range cases {
		req := &plugin.Request{RequestID: "r", Parameters: map[string]interface{}{"expression": tc.expr}}
		resp, err := p.Execute(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, plugin.StatusSuccess, resp.Status, tc.expr)

		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok, tc.expr)
		assert.Equal(t, tc.expr, data["expression"], tc.expr)
		assert.Equal(t, tc.wantType, data["type"], tc.expr)
		assert.InDelta(t, tc.want, toFloat(t, data["result"]), 0.0001, tc.expr)
	}
}

func toFloat(t *testing.T, v interface{}) float64 {
	t.Helper()
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		t.Fatalf("unexpected result type %T", v)
		return 0
	}
}

func TestCalculatorExampleEnvelope(t *testing.T) {
	p := NewCalculatorPlugin()
	req := &plugin.Request{RequestID: "r", Action: "calculate", Parameters: map[string]interface{}{"expression": "2 + 2"}}

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, plugin.StatusSuccess, resp.Status)
	assert.Equal(t, map[string]interface{}{
		"expression": "2 + 2",
		"result":     4,
		"type":       "int",
	}, resp.Data)
}

func TestCalculatorRejectsUnsupportedAction(t *testing.T) {
	p := NewCalculatorPlugin()
	req := &plugin.Request{RequestID: "r", Action: "multiply", Parameters: map[string]interface{}{"expression": "2 + 2"}}

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, plugin.StatusError, resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestCalculatorRejectsUnknownIdentifiers(t *testing.T) {
	p := NewCalculatorPlugin()
	req := &plugin.Request{RequestID: "r", Parameters: map[string]interface{}{"expression": "x + 1"}}

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, plugin.StatusError, resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestCalculatorRejectsUnwhitelistedFunction(t *testing.T) {
	p := NewCalculatorPlugin()
	req := &plugin.Request{RequestID: "r", Parameters: map[string]interface{}{"expression": "pow(2, 10)"}}

	resp, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, plugin.StatusError, resp.Status)
}

func TestEvaluateExpressionReturnsExpressionValidationError(t *testing.T) {
	_, err := evaluateExpression("1 +")
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CategoryExpressionValidation, apiErr.Category)
}
