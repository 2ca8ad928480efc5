package grading

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// arithmeticPattern matches a whole prompt holding exactly one binary
// operation, with an optional lead-in ("what is", "calculate", ...) and an
// optional trailing "=" or "?".
var arithmeticPattern = regexp.MustCompile(
	`(?i)^\s*(?:(?:what\s+is|what's|calculate|compute|solve|evaluate)\s*:?\s*)?` +
		`(-?\d+(?:\.\d+)?)\s*([-+−×x*÷/])\s*(-?\d+(?:\.\d+)?)` +
		`\s*(?:=\s*)?\??\s*$`)

// Expression is a parsed two-operand arithmetic prompt.
type Expression struct {
	Left     float64
	Operator string
	Right    float64
}

// ParseExpression extracts a two-operand expression from prompt.
func ParseExpression(prompt string) (Expression, bool) {
	m := arithmeticPattern.FindStringSubmatch(prompt)
	if m == nil {
		return Expression{}, false
	}
	left, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Expression{}, false
	}
	right, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Expression{}, false
	}
	return Expression{Left: left, Operator: normalizeOperator(m[2]), Right: right}, true
}

// Eval computes the exact result. Division by zero is reported as not ok.
func (e Expression) Eval() (float64, bool) {
	switch e.Operator {
	case "+":
		return e.Left + e.Right, true
	case "-":
		return e.Left - e.Right, true
	case "*":
		return e.Left * e.Right, true
	case "/":
		if e.Right == 0 {
			return 0, false
		}
		return e.Left / e.Right, true
	}
	return 0, false
}

// String renders the expression with canonical operators.
func (e Expression) String() string {
	return formatNumber(e.Left) + " " + e.Operator + " " + formatNumber(e.Right)
}

func normalizeOperator(op string) string {
	switch strings.ToLower(op) {
	case "−":
		return "-"
	case "×", "x":
		return "*"
	case "÷":
		return "/"
	}
	return op
}

// parseNumber reads a submitted answer as a finite number. Thousands
// separators and surrounding whitespace are ignored.
func parseNumber(answer string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(answer), ",", "")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func numbersEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
