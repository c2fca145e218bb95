package plugins

import (
	"context"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/plugin"
)

func init() {
	plugin.RegisterPluginConstructor("calculator", func() plugin.Plugin { return NewCalculatorPlugin() })
}

// calculatorFunctions is the whitelist of functions the evaluator accepts.
// log is natural log; log10 is the distinct base-10 entry — both are kept
// separate, matching the original plugin's allowed_functions table.
var calculatorFunctions = map[string]govaluate.ExpressionFunction{
	"sin":   unaryFunc(math.Sin),
	"cos":   unaryFunc(math.Cos),
	"tan":   unaryFunc(math.Tan),
	"sqrt":  unaryFunc(math.Sqrt),
	"log":   unaryFunc(math.Log),
	"log10": unaryFunc(math.Log10),
	"exp":   unaryFunc(math.Exp),
	"abs":   unaryFunc(math.Abs),
	"round": unaryFunc(math.Round),
	// floordiv covers the grammar's floor-division operator: govaluate has
	// no native "//" token, so floor division is exposed as a function
	// rather than an infix operator.
	"floordiv": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("floordiv expects exactly two arguments")
		}
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return nil, fmt.Errorf("floordiv expects numeric arguments")
		}
		return math.Floor(a / b), nil
	},
}

func unaryFunc(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected exactly one argument")
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expected a numeric argument")
		}
		return f(v), nil
	}
}

// calculatorConstants are the two named constants the expression grammar
// allows: pi and e.
var calculatorConstants = map[string]interface{}{
	"pi": math.Pi,
	"e":  math.E,
}

// CalculatorPlugin safely evaluates arithmetic expressions restricted to
// numeric constants, unary minus, the binary operators {+,-,*,/,%,**}, the
// named constants {pi,e}, and the function whitelist above. Floor division
// is the floordiv(a, b) function; there is no infix "//" operator, and a
// unary plus is not accepted. Any other token is rejected before evaluation.
type CalculatorPlugin struct{}

func NewCalculatorPlugin() *CalculatorPlugin { return &CalculatorPlugin{} }

func (p *CalculatorPlugin) Initialize(ctx context.Context, config map[string]interface{}) error {
	return nil
}

func (p *CalculatorPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:         "calculator",
		Version:      "1.0.0",
		Description:  "Safely evaluates an arithmetic expression",
		Author:       "core",
		Capabilities: []string{"calculator", "arithmetic", "no-external-deps"},
		RequiredParameters: map[string]string{
			"expression": "arithmetic expression to evaluate, e.g. \"2 * (3 + 4) + sqrt(16)\"",
		},
		Examples: []string{`{"expression": "2 * (3 + 4)"}`, `{"expression": "sqrt(16) + log10(100)"}`},
	}
}

func (p *CalculatorPlugin) ValidateRequest(req *plugin.Request) error {
	return plugin.ValidateRequired(req, p.Metadata().RequiredParameters)
}

func (p *CalculatorPlugin) Execute(ctx context.Context, req *plugin.Request) (*plugin.Response, error) {
	if req.Action != "" && req.Action != "calculate" {
		return &plugin.Response{
			RequestID: req.RequestID,
			Timestamp: req.Timestamp,
			Status:    plugin.StatusError,
			Error:     fmt.Sprintf("unsupported action %q", req.Action),
		}, nil
	}

	expression, _ := req.Parameters["expression"].(string)
	if expression == "" {
		return &plugin.Response{
			RequestID: req.RequestID,
			Timestamp: req.Timestamp,
			Status:    plugin.StatusError,
			Error:     "expression parameter is required",
		}, nil
	}

	result, err := evaluateExpression(expression)
	if err != nil {
		return &plugin.Response{
			RequestID: req.RequestID,
			Timestamp: req.Timestamp,
			Status:    plugin.StatusError,
			Error:     err.Error(),
		}, nil
	}

	return &plugin.Response{
		RequestID: req.RequestID,
		Timestamp: req.Timestamp,
		Status:    plugin.StatusSuccess,
		Data:      calculatorResult(expression, result),
	}, nil
}

func (p *CalculatorPlugin) Shutdown(ctx context.Context) error { return nil }

// calculatorResult mirrors the original plugin's response envelope: an
// integral float is coerced to int, and the resulting Go type name is
// reported alongside the expression and result.
func calculatorResult(expression string, result float64) map[string]interface{} {
	var value interface{} = result
	typeName := "float64"
	if result == math.Trunc(result) {
		value = int(result)
		typeName = "int"
	}
	return map[string]interface{}{
		"expression": expression,
		"result":     value,
		"type":       typeName,
	}
}

// evaluateExpression parses and evaluates expression against the whitelist.
// Anything outside it (function calls outside the whitelist, variable
// references, bitwise/logical/comparison operators) surfaces as an
// expression-validation error rather than a raw parser error.
func evaluateExpression(expression string) (float64, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, calculatorFunctions)
	if err != nil {
		return 0, apierrors.ExpressionValidation(expression, fmt.Sprintf("invalid expression: %v", err))
	}

	for _, tok := range expr.Tokens() {
		op, _ := tok.Value.(string)
		switch tok.Kind {
		case govaluate.NUMERIC, govaluate.VARIABLE, govaluate.FUNCTION, govaluate.SEPARATOR, govaluate.CLAUSE, govaluate.CLAUSE_CLOSE:
			continue
		case govaluate.PREFIX:
			if op == "-" {
				continue
			}
		case govaluate.MODIFIER:
			if op == "+" || op == "-" || op == "*" || op == "/" || op == "%" || op == "**" {
				continue
			}
		}
		return 0, apierrors.ExpressionValidation(expression, fmt.Sprintf("unsupported token %v", tok.Value))
	}

	for _, v := range expr.Vars() {
		if _, ok := calculatorConstants[v]; !ok {
			return 0, apierrors.ExpressionValidation(expression, fmt.Sprintf("unknown identifier %q", v))
		}
	}

	result, err := expr.Evaluate(calculatorConstants)
	if err != nil {
		return 0, apierrors.ExpressionValidation(expression, fmt.Sprintf("evaluation failed: %v", err))
	}

	switch v := result.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		return 0, apierrors.ExpressionValidation(expression, "expression must evaluate to a number")
	default:
		return 0, apierrors.ExpressionValidation(expression, fmt.Sprintf("unexpected result type %T", result))
	}
}
