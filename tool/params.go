package tool

import (
	"fmt"
	"math"

	newton "github.com/njchilds90/gonewton"
)

// params wraps the decoded JSON parameters of a request. Numbers arrive as
// float64.
type params map[string]interface{}

func (p params) getString(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing param: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %s must be a string", key)
	}
	return s, nil
}

func (p params) optString(key, def string) (string, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.getString(key)
}

func (p params) getNumber(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing param: %s", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("param %s must be a number", key)
	}
	return f, nil
}

func (p params) optNumber(key string, def float64) (float64, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.getNumber(key)
}

func (p params) optInt(key string) (int, bool, error) {
	if _, ok := p[key]; !ok {
		return 0, false, nil
	}
	f, err := p.getNumber(key)
	if err != nil {
		return 0, false, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false, fmt.Errorf("param %s must be an integer", key)
	}
	return int(f), true, nil
}

func (p params) optBool(key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %s must be a boolean", key)
	}
	return b, nil
}

func (p params) objects(key string) ([]params, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("missing param: %s", key)
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("param %s must be array", key)
	}
	result := make([]params, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("param %s[%d] must be an object", key, i)
		}
		result[i] = params(m)
	}
	return result, nil
}

// solverOptions converts the optional tol, max_iter, alpha, step and
// derivative parameters. The second result reports whether a trace was
// requested.
func (p params) solverOptions() ([]newton.Option, bool, error) {
	var opts []newton.Option
	for _, key := range []string{"tol", "alpha", "step"} {
		if _, ok := p[key]; !ok {
			continue
		}
		v, err := p.getNumber(key)
		if err != nil {
			return nil, false, err
		}
		switch key {
		case "tol":
			opts = append(opts, newton.WithTolerance(v))
		case "alpha":
			opts = append(opts, newton.WithAlpha(v))
		case "step":
			opts = append(opts, newton.WithStep(v))
		}
	}
	n, ok, err := p.optInt("max_iter")
	if err != nil {
		return nil, false, err
	}
	if ok {
		opts = append(opts, newton.WithMaxIterations(n))
	}
	if _, ok := p["derivative"]; ok {
		name, err := p.getString("derivative")
		if err != nil {
			return nil, false, err
		}
		mode, err := newton.ParseDerivativeMode(name)
		if err != nil {
			return nil, false, err
		}
		opts = append(opts, newton.WithDerivative(mode))
	}
	trace, err := p.optBool("trace")
	if err != nil {
		return nil, false, err
	}
	return opts, trace, nil
}
