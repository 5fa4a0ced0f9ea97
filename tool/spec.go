package tool

import "github.com/njchilds90/gonewton/expr"

// ToolSpec describes every tool with a JSON input schema.
func ToolSpec() map[string]interface{} {
	solverProps := map[string]string{
		"f": "string", "df": "string", "x0": "number", "tol": "number",
		"max_iter": "integer", "alpha": "number", "step": "number",
		"derivative": "string", "trace": "boolean",
	}
	tools := []map[string]interface{}{
		ts("newton", "Find a root of f(x) by damped Newton-Raphson. Optional: df, tol (1e-8), max_iter (100), alpha (1.0), step (1e-6), derivative (numeric|dual), trace",
			[]string{"f", "x0"}, solverProps),
		ts("newton_batch", "Solve several newton problems concurrently. problems is an array of newton params",
			[]string{"problems"}, map[string]string{"problems": "array"}),
		ts("evaluate", "Evaluate f at x", []string{"f", "x"},
			map[string]string{"f": "string", "x": "number"}),
		ts("derivative", "Estimate f'(x). mode: numeric (centered difference, optional step) or dual (exact)",
			[]string{"f", "x"}, map[string]string{"f": "string", "x": "number", "mode": "string", "step": "number"}),
		ts("tool_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	return map[string]interface{}{
		"tools":     tools,
		"variable":  expr.VariableName,
		"functions": expr.Functions(),
		"constants": expr.Constants(),
	}
}

func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	properties := map[string]interface{}{}
	for k, typ := range props {
		properties[k] = map[string]interface{}{"type": typ}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
