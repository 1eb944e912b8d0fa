package formula

// Vars names the identifiers a position formula may reference: terminal
// rows/cols, cursor x/y, and the placeholder grid's own column and row
// counts (ec, er).
type Vars struct {
	TR, TC float64
	CX, CY float64
	EC, ER float64
}

func (v Vars) asMap() map[string]float64 {
	return map[string]float64{
		"tr": v.TR,
		"tc": v.TC,
		"cx": v.CX,
		"cy": v.CY,
		"ec": v.EC,
		"er": v.ER,
	}
}

// Eval parses and evaluates expr in one step against vars.
func Eval(expr string, vars Vars) (float64, error) {
	n, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return n.eval(vars.asMap())
}

// EvalNode evaluates a previously parsed Node, letting callers cache the
// parse of a formula that is evaluated repeatedly (e.g. once per row while
// emitting a placeholder grid).
func EvalNode(n Node, vars Vars) (float64, error) {
	return n.eval(vars.asMap())
}
