package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	t.Setenv("NEWTON_LOG_LEVEL", "")
	t.Setenv("NEWTON_LOG_FORMAT", "")
	var out, errb bytes.Buffer
	code = run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRun_Converged(t *testing.T) {
	code, out, errOut := runCLI(t, "--f", "x**3 - x - 2", "--x0", "1.5")
	assert.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "\nRoot ≈ 1.5213797068  (iterations: ")
	assert.Contains(t, out, "tol: 1e-08)")
	assert.Contains(t, out, "Check: f(root) ≈ ")
	assert.Empty(t, errOut)
}

func TestRun_AnalyticDerivativeVerbose(t *testing.T) {
	code, out, _ := runCLI(t, "--f", "x**2 - 4", "--df", "2*x", "--x0", "3", "--verbose")
	assert.Equal(t, 0, code)
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "iter   1: x= 3, f(x)= 5, f'(x)= 6, step= 0.833333333333", lines[0])
	assert.Contains(t, out, "Root ≈ 2  ")
}

func TestRun_DualDerivative(t *testing.T) {
	code, out, _ := runCLI(t, "--f", "cos(x) - x", "--x0", "1", "--derivative", "dual")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Root ≈ 0.739085133215")
}

func TestRun_MaxIterations(t *testing.T) {
	code, out, _ := runCLI(t, "--f", "x**2 + 1", "--x0", "0.5", "--max-iter", "3")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Stopped after 3 iterations (max_iter reached). Best x ≈ ")
	assert.Contains(t, out, "f(x) ≈ ")
}

func TestRun_DerivativeVanished(t *testing.T) {
	code, out, _ := runCLI(t, "--f", "x**2", "--x0", "0")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "Failed: Derivative ~ 0 at iteration 1 (x=0).")
}

func TestRun_EvaluationErrors(t *testing.T) {
	cases := map[string][]string{
		"disallowed call":   {"--f", "__import__(x)", "--x0", "1"},
		"disallowed name":   {"--f", "x + y", "--x0", "1"},
		"bad df":            {"--f", "x", "--df", "exec(x)", "--x0", "1"},
		"syntax":            {"--f", "x +* 2", "--x0", "1"},
		"domain mid-run":    {"--f", "log(x)", "--df", "1/x", "--x0", "3"},
		"domain at x0":      {"--f", "sqrt(x)", "--x0", "-1"},
		"division by zero":  {"--f", "1/x", "--df", "0*x + 1", "--x0", "0"},
		"numeric end point": {"--f", "sqrt(x) - 1", "--x0", "0"},
		"dual undefined":    {"--f", "sqrt(x) - 1", "--x0", "0", "--derivative", "dual"},
	}
	for name, args := range cases {
		code, out, errOut := runCLI(t, args...)
		assert.Equal(t, 2, code, name)
		assert.True(t, strings.HasPrefix(errOut, "Error while evaluating expressions: "), "%s: %q", name, errOut)
		assert.NotContains(t, out, "Root", name)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t, "--f", "x")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `required flag(s) "x0" not set`)

	code, _, errOut = runCLI(t, "--f", "x", "--x0", "1", "--tol=-1")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "tolerance must be finite and non-negative")

	code, _, _ = runCLI(t, "--f", "x", "--x0", "abc")
	assert.Equal(t, 2, code)
}

func TestRun_AlphaWarning(t *testing.T) {
	code, out, errOut := runCLI(t, "--f", "x - 1", "--df", "1", "--x0", "3", "--alpha", "1.5", "--max-iter", "200")
	assert.Equal(t, 0, code)
	assert.Contains(t, errOut, "alpha outside (0, 1]")
	assert.Contains(t, out, "Root ≈ 1")
}

func TestRun_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newton.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  max_iterations: 2\nlogging:\n  level: warn\n"), 0644))

	code, out, _ := runCLI(t, "--config", path, "--f", "x**2 + 1", "--x0", "0.5")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Stopped after 2 iterations")

	code, out, _ = runCLI(t, "--config", path, "--f", "x**2 + 1", "--x0", "0.5", "--max-iter", "4")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Stopped after 4 iterations")
}

func TestRun_DebugLogging(t *testing.T) {
	code, _, errOut := runCLI(t, "--log-level", "debug", "--f", "x**2 - 4", "--df", "2*x", "--x0", "3")
	assert.Equal(t, 0, code)
	assert.Contains(t, errOut, "newton iteration")
	assert.Contains(t, errOut, "run finished")
}

func TestEval(t *testing.T) {
	code, out, _ := runCLI(t, "eval", "--f", "x**3", "--x", "2", "--derivative")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "f(x) = 8\n")
	assert.Contains(t, out, "f'(x) ≈ 12")
	assert.Contains(t, out, "(numeric, h=1e-06)")
	assert.Contains(t, out, "f'(x) = 12 (dual)\n")

	code, _, errOut := runCLI(t, "eval", "--f", "1/x", "--x", "0")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "division by zero")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "newton.yaml")

	code, out, errOut := runCLI(t, "config", "init", path)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Wrote "+path+"\n", out)

	// The written file drives a solve.
	code, out, _ = runCLI(t, "--config", path, "--f", "x**2 - 4", "--x0", "3")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "tol: 1e-08)")

	code, _, errOut = runCLI(t, "config", "init", path)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "already exists")

	code, _, _ = runCLI(t, "config", "init", path, "--force")
	assert.Equal(t, 0, code)
}
