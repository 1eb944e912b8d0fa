package formula

import (
	"math"
	"testing"
)

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 * 3 + 4", 10},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{"ceil(1.2)", 2},
		{"floor(1.8)", 1},
		{"ceil(-1.2)", -1},
		{"floor(-1.2)", -2},
	}
	for _, c := range cases {
		got, err := Eval(c.expr, Vars{})
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", c.expr, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Eval(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalVars(t *testing.T) {
	vars := Vars{TR: 24, TC: 80, CX: 5, CY: 10, EC: 15, ER: 2}
	got, err := Eval("tc - ec", vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 65 {
		t.Errorf("got %v, want 65", got)
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0", Vars{}); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestEvalUnknownIdentifier(t *testing.T) {
	if _, err := Eval("bogus + 1", Vars{}); err == nil {
		t.Fatal("expected unknown-identifier error")
	}
}

func TestEvalUnknownFunction(t *testing.T) {
	if _, err := Eval("sqrt(4)", Vars{}); err == nil {
		t.Fatal("expected unknown-function error")
	}
}

func TestParseReuse(t *testing.T) {
	n, err := Parse("cx + cy")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	for i, v := range []Vars{{CX: 1, CY: 2}, {CX: 3, CY: 4}} {
		got, err := EvalNode(n, v)
		if err != nil {
			t.Fatalf("eval %d: %v", i, err)
		}
		want := v.CX + v.CY
		if got != want {
			t.Errorf("eval %d = %v, want %v", i, got, want)
		}
	}
}
