// Package tool exposes root finding and expression evaluation as JSON tool
// calls in the shape used by MCP servers.
package tool

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	newton "github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/expr"
	"github.com/njchilds90/gonewton/internal/logging"
	"github.com/njchilds90/gonewton/internal/options"
)

// MaxBatch bounds the number of problems in one newton_batch call.
const MaxBatch = 1000

type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolResponse struct {
	Result interface{} `json:"result,omitempty"`
	String string      `json:"string,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Number is a float64 that survives JSON encoding when it is not finite.
// NaN and infinities are written as the strings "NaN", "+Inf" and "-Inf".
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// Step is one traced iteration in a tool result.
type Step struct {
	K    int    `json:"k"`
	X    Number `json:"x"`
	FX   Number `json:"fx"`
	DFX  Number `json:"dfx"`
	Step Number `json:"step"`
}

// SolveResult is the result of one newton problem. For batch items that
// failed to parse or evaluate only Error is set.
type SolveResult struct {
	Status     newton.Status `json:"status,omitempty"`
	Class      string        `json:"class,omitempty"`
	X          Number        `json:"x"`
	Iterations int           `json:"iterations"`
	Residual   *Number       `json:"residual,omitempty"`
	Message    string        `json:"message,omitempty"`
	Trace      []Step        `json:"trace,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Handler dispatches tool calls. It is safe for concurrent use.
type Handler struct {
	cache       *expr.Cache
	logger      *zap.Logger
	concurrency int
	solverOpts  []newton.Option
}

// Option configures a Handler.
type Option = options.Option[*Handler]

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	})
}

// WithCacheSize bounds the parse cache.
func WithCacheSize(n int) Option {
	return options.NoError(func(h *Handler) {
		h.cache = expr.NewCache(n)
	})
}

// WithBatchConcurrency bounds how many batch problems run at once.
func WithBatchConcurrency(n int) Option {
	return options.New(func(h *Handler) error {
		if n < 1 {
			return fmt.Errorf("batch concurrency must be >= 1, got %d", n)
		}
		h.concurrency = n
		return nil
	})
}

// WithSolverOptions sets iteration options applied before the per-request
// parameters.
func WithSolverOptions(opts ...newton.Option) Option {
	return options.NoError(func(h *Handler) {
		h.solverOpts = append(h.solverOpts, opts...)
	})
}

// NewHandler returns a Handler with a 1024-entry parse cache and a batch
// concurrency of 4 unless overridden.
func NewHandler(opts ...Option) (*Handler, error) {
	h := &Handler{
		cache:       expr.NewCache(1024),
		logger:      zap.NewNop(),
		concurrency: 4,
	}
	if err := options.Apply(h, opts...); err != nil {
		return nil, err
	}
	return h, nil
}

// Handle runs one tool call. Failures are reported in ToolResponse.Error.
func (h *Handler) Handle(ctx context.Context, req ToolRequest) ToolResponse {
	p := params(req.Params)
	log := h.logger.With(zap.String("tool", req.Tool))

	switch req.Tool {
	case "newton":
		res, err := h.solve(p)
		if err != nil {
			log.Debug("newton failed", zap.Error(err))
			return ToolResponse{Error: err.Error()}
		}
		logging.Outcome(log, res.outcome)
		return ToolResponse{Result: res.SolveResult, String: res.summary}

	case "newton_batch":
		problems, err := p.objects("problems")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		if len(problems) > MaxBatch {
			return ToolResponse{Error: fmt.Sprintf("param problems holds %d entries, limit is %d", len(problems), MaxBatch)}
		}
		results, err := h.batch(ctx, problems)
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		log.Debug("batch finished", zap.Int("problems", len(problems)))
		return ToolResponse{Result: results, String: batchSummary(results)}

	case "evaluate":
		e, x, err := h.exprAt(p)
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		v, err := e.Eval(x)
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		return ToolResponse{
			Result: map[string]interface{}{"value": Number(v), "expression": e},
			String: fmt.Sprintf("%.12g", v),
		}

	case "derivative":
		e, x, err := h.exprAt(p)
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		modeName, err := p.optString("mode", "numeric")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		mode, err := newton.ParseDerivativeMode(modeName)
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		var d float64
		if mode == newton.DerivativeDual {
			_, d, err = expr.DualDerivative(e, x)
		} else {
			var step float64
			if step, err = p.optNumber("step", expr.DefaultStep); err == nil {
				d, err = expr.NumericDerivative(e, x, step)
			}
		}
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		return ToolResponse{
			Result: map[string]interface{}{"value": Number(d), "mode": mode.String()},
			String: fmt.Sprintf("%.12g", d),
		}

	case "tool_spec":
		return ToolResponse{Result: ToolSpec(), String: "tool specification"}
	}

	return ToolResponse{Error: fmt.Sprintf("unknown tool: %s", req.Tool)}
}

func (h *Handler) exprAt(p params) (*expr.Expression, float64, error) {
	src, err := p.getString("f")
	if err != nil {
		return nil, 0, err
	}
	x, err := p.getNumber("x")
	if err != nil {
		return nil, 0, err
	}
	e, err := h.cache.Parse(src)
	if err != nil {
		return nil, 0, err
	}
	return e, x, nil
}

type solved struct {
	SolveResult
	outcome newton.Outcome
	summary string
}

func (h *Handler) solve(p params) (solved, error) {
	fText, err := p.getString("f")
	if err != nil {
		return solved{}, err
	}
	x0, err := p.getNumber("x0")
	if err != nil {
		return solved{}, err
	}
	dfText, err := p.optString("df", "")
	if err != nil {
		return solved{}, err
	}
	opts, trace, err := p.solverOptions()
	if err != nil {
		return solved{}, err
	}

	f, err := h.cache.Parse(fText)
	if err != nil {
		return solved{}, fmt.Errorf("f: %w", err)
	}
	var df *expr.Expression
	if dfText != "" {
		if df, err = h.cache.Parse(dfText); err != nil {
			return solved{}, fmt.Errorf("df: %w", err)
		}
	}

	rec := &newton.Recorder{}
	all := append(append([]newton.Option{}, h.solverOpts...), opts...)
	if trace {
		all = append(all, newton.WithTrace(rec))
	} else if h.logger.Core().Enabled(zap.DebugLevel) {
		all = append(all, newton.WithTrace(logging.Tracer(h.logger)))
	}
	cfg := newton.DefaultConfig()
	if err := options.Apply(&cfg, all...); err != nil {
		return solved{}, err
	}

	out, err := newton.Iterate(f, df, x0, newton.WithConfig(cfg))
	if err != nil {
		return solved{}, err
	}

	res := SolveResult{
		Status:     out.Status,
		Class:      out.Class().String(),
		X:          Number(out.X),
		Iterations: out.Iterations,
		Message:    out.Message(),
	}
	if out.Status != newton.DerivativeVanished {
		if r, err := f.Eval(out.X); err == nil {
			n := Number(r)
			res.Residual = &n
		}
	}
	for _, s := range rec.States {
		res.Trace = append(res.Trace, Step{K: s.K, X: Number(s.X), FX: Number(s.FX), DFX: Number(s.DFX), Step: Number(s.Step)})
	}
	return solved{SolveResult: res, outcome: out, summary: out.Summary(cfg.Tolerance)}, nil
}

func batchSummary(results []SolveResult) string {
	var ok, stopped, failed, errs int
	for _, r := range results {
		switch {
		case r.Error != "":
			errs++
		case r.Class == newton.ClassSuccess.String():
			ok++
		case r.Class == newton.ClassStoppedEarly.String():
			stopped++
		default:
			failed++
		}
	}
	return fmt.Sprintf("%d problems: %d converged, %d stopped, %d failed, %d errors",
		len(results), ok, stopped, failed, errs)
}
