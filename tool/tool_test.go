package tool_test

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats/scalar"

	newton "github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHandler(t *testing.T, opts ...tool.Option) *tool.Handler {
	t.Helper()
	h, err := tool.NewHandler(opts...)
	require.NoError(t, err)
	return h
}

func call(h *tool.Handler, name string, params map[string]interface{}) tool.ToolResponse {
	return h.Handle(context.Background(), tool.ToolRequest{Tool: name, Params: params})
}

// ============================================================
// newton
// ============================================================

func TestNewton_Cubic(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "newton", map[string]interface{}{"f": "x**3 - x - 2", "x0": 1.5})
	require.Empty(t, resp.Error)

	res, ok := resp.Result.(tool.SolveResult)
	require.True(t, ok)
	assert.Equal(t, newton.Converged, res.Status)
	assert.Equal(t, "success", res.Class)
	assert.True(t, scalar.EqualWithinAbs(float64(res.X), 1.5213797, 1e-7))
	require.NotNil(t, res.Residual)
	assert.LessOrEqual(t, math.Abs(float64(*res.Residual)), 1e-9)
	assert.Empty(t, res.Trace)
	assert.True(t, strings.HasPrefix(resp.String, "Root ≈ 1.52137970"), resp.String)
}

func TestNewton_AnalyticDerivativeWithTrace(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "newton", map[string]interface{}{
		"f": "cos(x) - x", "df": "-sin(x) - 1", "x0": 1.0, "trace": true,
	})
	require.Empty(t, resp.Error)
	res := resp.Result.(tool.SolveResult)
	require.Len(t, res.Trace, res.Iterations)
	for i, s := range res.Trace {
		assert.Equal(t, i+1, s.K)
	}
	assert.Equal(t, 1.0, float64(res.Trace[0].X))
}

func TestNewton_OptionalParams(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "newton", map[string]interface{}{
		"f": "x**2 + 1", "x0": 0.5, "max_iter": 5.0, "alpha": 1.0, "tol": 1e-10, "derivative": "dual",
	})
	require.Empty(t, resp.Error)
	res := resp.Result.(tool.SolveResult)
	assert.Equal(t, newton.MaxIterationsReached, res.Status)
	assert.Equal(t, 5, res.Iterations)
	assert.NotNil(t, res.Residual)
	assert.Contains(t, resp.String, "Stopped after 5 iterations")
}

func TestNewton_VanishingDerivative(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "newton", map[string]interface{}{"f": "x**2", "x0": 0.0})
	require.Empty(t, resp.Error)
	res := resp.Result.(tool.SolveResult)
	assert.Equal(t, newton.DerivativeVanished, res.Status)
	assert.Equal(t, "failure", res.Class)
	assert.Nil(t, res.Residual)
	assert.Equal(t, "Failed: Derivative ~ 0 at iteration 1 (x=0).", resp.String)
}

func TestNewton_SolverDefaults(t *testing.T) {
	h := newHandler(t, tool.WithSolverOptions(newton.WithMaxIterations(2)))
	resp := call(h, "newton", map[string]interface{}{"f": "x**2 + 1", "x0": 0.5})
	require.Empty(t, resp.Error)
	assert.Equal(t, 2, resp.Result.(tool.SolveResult).Iterations)

	// Request parameters win over handler defaults.
	resp = call(h, "newton", map[string]interface{}{"f": "x**2 + 1", "x0": 0.5, "max_iter": 3.0})
	require.Empty(t, resp.Error)
	assert.Equal(t, 3, resp.Result.(tool.SolveResult).Iterations)
}

func TestNewton_Errors(t *testing.T) {
	h := newHandler(t)
	cases := []struct {
		params map[string]interface{}
		want   string
	}{
		{map[string]interface{}{"x0": 1.0}, "missing param: f"},
		{map[string]interface{}{"f": "x"}, "missing param: x0"},
		{map[string]interface{}{"f": 3.0, "x0": 1.0}, "param f must be a string"},
		{map[string]interface{}{"f": "x", "x0": "1"}, "param x0 must be a number"},
		{map[string]interface{}{"f": "x", "x0": 1.0, "max_iter": 1.5}, "param max_iter must be an integer"},
		{map[string]interface{}{"f": "x", "x0": 1.0, "max_iter": 0.0}, "max iterations must be >= 1"},
		{map[string]interface{}{"f": "x", "x0": 1.0, "tol": -1.0}, "tolerance must be finite and non-negative"},
		{map[string]interface{}{"f": "x", "x0": 1.0, "derivative": "symbolic"}, "unknown derivative mode"},
		{map[string]interface{}{"f": "x", "x0": 1.0, "trace": "yes"}, "param trace must be a boolean"},
		{map[string]interface{}{"f": "x + y", "x0": 1.0}, `f: evaluation error: unknown identifier "y" at offset 4`},
		{map[string]interface{}{"f": "x", "df": "open(x)", "x0": 1.0}, `df: evaluation error: unknown function "open"`},
		{map[string]interface{}{"f": "x +", "x0": 1.0}, "f: parse error"},
		{map[string]interface{}{"f": "log(x)", "df": "1/x", "x0": 3.0}, "iteration 2"},
	}
	for _, tc := range cases {
		resp := call(h, "newton", tc.params)
		assert.Contains(t, resp.Error, tc.want, "%v", tc.params)
		assert.Nil(t, resp.Result)
	}
}

func TestNewton_DebugLoggingTracesIterations(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newHandler(t, tool.WithLogger(zap.New(core)))

	resp := call(h, "newton", map[string]interface{}{"f": "x**2 - 4", "x0": 3.0})
	require.Empty(t, resp.Error)
	res := resp.Result.(tool.SolveResult)

	assert.Equal(t, res.Iterations, logs.FilterMessage("newton iteration").Len())
	assert.Equal(t, 1, logs.FilterMessage("newton converged").Len())
}

// ============================================================
// newton_batch
// ============================================================

func TestBatch(t *testing.T) {
	h := newHandler(t, tool.WithBatchConcurrency(2))
	resp := call(h, "newton_batch", map[string]interface{}{
		"problems": []interface{}{
			map[string]interface{}{"f": "x**3 - x - 2", "x0": 1.5},
			map[string]interface{}{"f": "sin(y)", "x0": 1.0},
			map[string]interface{}{"f": "x**2 + 1", "x0": 0.5, "max_iter": 4.0},
			map[string]interface{}{"f": "x**2", "x0": 0.0},
		},
	})
	require.Empty(t, resp.Error)
	results := resp.Result.([]tool.SolveResult)
	require.Len(t, results, 4)

	assert.Equal(t, newton.Converged, results[0].Status)
	assert.Contains(t, results[1].Error, "unknown identifier")
	assert.Equal(t, newton.MaxIterationsReached, results[2].Status)
	assert.Equal(t, newton.DerivativeVanished, results[3].Status)
	assert.Equal(t, "4 problems: 1 converged, 1 stopped, 1 failed, 1 errors", resp.String)
}

func TestBatch_MatchesSingleCalls(t *testing.T) {
	h := newHandler(t, tool.WithBatchConcurrency(3))
	var problems []interface{}
	for i := 0; i < 20; i++ {
		problems = append(problems, map[string]interface{}{"f": "exp(-x) - x", "x0": float64(i) / 4})
	}
	resp := call(h, "newton_batch", map[string]interface{}{"problems": problems})
	require.Empty(t, resp.Error)
	results := resp.Result.([]tool.SolveResult)

	for i, p := range problems {
		single := call(h, "newton", p.(map[string]interface{}))
		require.Empty(t, single.Error)
		if diff := cmp.Diff(single.Result.(tool.SolveResult), results[i]); diff != "" {
			t.Errorf("problem %d: batch result differs from single call (-single +batch):\n%s", i, diff)
		}
	}
}

func TestBatch_Errors(t *testing.T) {
	h := newHandler(t)

	resp := call(h, "newton_batch", map[string]interface{}{})
	assert.Equal(t, "missing param: problems", resp.Error)

	resp = call(h, "newton_batch", map[string]interface{}{"problems": []interface{}{"x"}})
	assert.Equal(t, "param problems[0] must be an object", resp.Error)

	big := make([]interface{}, tool.MaxBatch+1)
	for i := range big {
		big[i] = map[string]interface{}{"f": "x", "x0": 1.0}
	}
	resp = call(h, "newton_batch", map[string]interface{}{"problems": big})
	assert.Contains(t, resp.Error, "limit is 1000")
}

func TestBatch_CancelledContext(t *testing.T) {
	h := newHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := h.Handle(ctx, tool.ToolRequest{Tool: "newton_batch", Params: map[string]interface{}{
		"problems": []interface{}{map[string]interface{}{"f": "x", "x0": 1.0}},
	}})
	assert.Equal(t, context.Canceled.Error(), resp.Error)
}

// ============================================================
// evaluate / derivative / tool_spec
// ============================================================

func TestEvaluate(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "evaluate", map[string]interface{}{"f": "2**-1 + x", "x": 1.0})
	require.Empty(t, resp.Error)
	assert.Equal(t, "1.5", resp.String)

	resp = call(h, "evaluate", map[string]interface{}{"f": "1/x", "x": 0.0})
	assert.Contains(t, resp.Error, "evaluation error")

	resp = call(h, "evaluate", map[string]interface{}{"f": "x"})
	assert.Equal(t, "missing param: x", resp.Error)
}

func TestDerivative(t *testing.T) {
	h := newHandler(t)

	resp := call(h, "derivative", map[string]interface{}{"f": "x**3", "x": 2.0})
	require.Empty(t, resp.Error)
	v := resp.Result.(map[string]interface{})["value"].(tool.Number)
	assert.True(t, scalar.EqualWithinAbs(float64(v), 12, 1e-6))

	resp = call(h, "derivative", map[string]interface{}{"f": "x**3", "x": 2.0, "mode": "dual"})
	require.Empty(t, resp.Error)
	assert.Equal(t, "12", resp.String)
	assert.Equal(t, "dual", resp.Result.(map[string]interface{})["mode"])

	resp = call(h, "derivative", map[string]interface{}{"f": "x", "x": 2.0, "mode": "symbolic"})
	assert.Contains(t, resp.Error, "unknown derivative mode")

	resp = call(h, "derivative", map[string]interface{}{"f": "sqrt(x)", "x": 0.0, "mode": "dual"})
	assert.Contains(t, resp.Error, "derivative undefined in sqrt(x) at x=0")
	assert.Nil(t, resp.Result)
}

func TestNewton_DualDerivativeUndefined(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "newton", map[string]interface{}{"f": "sqrt(x) - 1", "x0": 0.0, "derivative": "dual"})
	assert.Contains(t, resp.Error, "iteration 1: dual derivative: evaluation error: derivative undefined")
	assert.Nil(t, resp.Result)
}

func TestToolSpec(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "tool_spec", nil)
	require.Empty(t, resp.Error)

	spec := resp.Result.(map[string]interface{})
	tools := spec["tools"].([]map[string]interface{})
	var names []string
	for _, tl := range tools {
		names = append(names, tl["name"].(string))
	}
	assert.Equal(t, []string{"newton", "newton_batch", "evaluate", "derivative", "tool_spec"}, names)
	assert.Contains(t, spec["functions"], "sqrt")
	assert.Equal(t, "x", spec["variable"])

	_, err := json.Marshal(spec)
	assert.NoError(t, err)
}

func TestUnknownTool(t *testing.T) {
	resp := call(newHandler(t), "eval_python", nil)
	assert.Equal(t, "unknown tool: eval_python", resp.Error)
}

func TestNewHandler_InvalidConcurrency(t *testing.T) {
	_, err := tool.NewHandler(tool.WithBatchConcurrency(0))
	assert.Error(t, err)
}

func TestNumber_MarshalJSON(t *testing.T) {
	b, err := json.Marshal([]tool.Number{1.5, tool.Number(math.NaN()), tool.Number(math.Inf(1)), tool.Number(math.Inf(-1))})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,"NaN","+Inf","-Inf"]`, string(b))
}

func TestResponse_JSONShape(t *testing.T) {
	h := newHandler(t)
	resp := call(h, "newton", map[string]interface{}{"f": "x - 2", "df": "1", "x0": 0.0})
	b, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result map[string]interface{} `json:"result"`
		String string                 `json:"string"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "converged", decoded.Result["status"])
	assert.Equal(t, "success", decoded.Result["class"])
	assert.Equal(t, 2.0, decoded.Result["x"])
	assert.NotContains(t, decoded.Result, "error")
}
