// Package calc evaluates arithmetic expressions with a restricted
// shunting-yard parser. Expressions it cannot parse are handed to the
// model as a word problem; user text never reaches an interpreter.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrParse indicates the expression is not plain arithmetic.
var ErrParse = errors.New("not a plain arithmetic expression")

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOperator
	tokFunc
	tokLeftParen
	tokRightParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	val  float64
}

// functions whitelists callable names with their arity.
var functions = map[string]int{
	"sqrt": 1,
	"abs":  1,
	"min":  2,
	"max":  2,
	"pow":  2,
}

type opInfo struct {
	precedence int
	rightAssoc bool
}

var operators = map[string]opInfo{
	"+":   {2, false},
	"-":   {2, false},
	"*":   {3, false},
	"/":   {3, false},
	"%":   {3, false},
	"^":   {4, true},
	"neg": {5, true}, // unary minus
}

// Evaluate parses and computes a restricted arithmetic expression.
// Anything outside the whitelist returns ErrParse.
func Evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: empty expression", ErrParse)
	}

	rpn, err := toRPN(tokens)
	if err != nil {
		return 0, err
	}
	return evalRPN(rpn)
}

func tokenize(expr string) ([]token, error) {
	var out []token
	runes := []rune(expr)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			val, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrParse, text)
			}
			out = append(out, token{kind: tokNumber, text: text, val: val})
		case unicode.IsLetter(r):
			start := i
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				i++
			}
			name := strings.ToLower(string(runes[start:i]))
			if _, ok := functions[name]; !ok {
				return nil, fmt.Errorf("%w: unknown identifier %q", ErrParse, name)
			}
			out = append(out, token{kind: tokFunc, text: name})
		case strings.ContainsRune("+-*/%^", r):
			op := string(r)
			if op == "-" && expectsOperand(out) {
				op = "neg"
			}
			out = append(out, token{kind: tokOperator, text: op})
			i++
		case r == '(':
			out = append(out, token{kind: tokLeftParen, text: "("})
			i++
		case r == ')':
			out = append(out, token{kind: tokRightParen, text: ")"})
			i++
		case r == ',':
			out = append(out, token{kind: tokComma, text: ","})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrParse, string(r))
		}
	}
	return out, nil
}

// expectsOperand reports whether the next token position expects an
// operand, which makes a minus sign unary.
func expectsOperand(sofar []token) bool {
	if len(sofar) == 0 {
		return true
	}
	last := sofar[len(sofar)-1]
	return last.kind == tokOperator || last.kind == tokLeftParen || last.kind == tokComma
}

// toRPN runs the shunting-yard algorithm.
func toRPN(tokens []token) ([]token, error) {
	var output, stack []token

	pop := func() token {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return t
	}

	for _, t := range tokens {
		switch t.kind {
		case tokNumber:
			output = append(output, t)
		case tokFunc:
			stack = append(stack, t)
		case tokOperator:
			info := operators[t.text]
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != tokOperator {
					break
				}
				topInfo := operators[top.text]
				if topInfo.precedence > info.precedence ||
					(topInfo.precedence == info.precedence && !info.rightAssoc) {
					output = append(output, pop())
					continue
				}
				break
			}
			stack = append(stack, t)
		case tokLeftParen:
			stack = append(stack, t)
		case tokComma:
			for len(stack) > 0 && stack[len(stack)-1].kind != tokLeftParen {
				output = append(output, pop())
			}
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: misplaced comma", ErrParse)
			}
		case tokRightParen:
			for len(stack) > 0 && stack[len(stack)-1].kind != tokLeftParen {
				output = append(output, pop())
			}
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced parentheses", ErrParse)
			}
			pop() // discard the left paren
			if len(stack) > 0 && stack[len(stack)-1].kind == tokFunc {
				output = append(output, pop())
			}
		}
	}

	for len(stack) > 0 {
		t := pop()
		if t.kind == tokLeftParen {
			return nil, fmt.Errorf("%w: unbalanced parentheses", ErrParse)
		}
		output = append(output, t)
	}
	return output, nil
}

func evalRPN(rpn []token) (float64, error) {
	var stack []float64

	pop := func() float64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, t := range rpn {
		switch t.kind {
		case tokNumber:
			stack = append(stack, t.val)
		case tokOperator:
			if t.text == "neg" {
				if len(stack) < 1 {
					return 0, fmt.Errorf("%w: malformed expression", ErrParse)
				}
				stack = append(stack, -pop())
				continue
			}
			if len(stack) < 2 {
				return 0, fmt.Errorf("%w: malformed expression", ErrParse)
			}
			b := pop()
			a := pop()
			v, err := applyOp(t.text, a, b)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)
		case tokFunc:
			arity := functions[t.text]
			if len(stack) < arity {
				return 0, fmt.Errorf("%w: %s needs %d arguments", ErrParse, t.text, arity)
			}
			args := make([]float64, arity)
			for i := arity - 1; i >= 0; i-- {
				args[i] = pop()
			}
			v, err := applyFunc(t.text, args)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)
		default:
			return 0, fmt.Errorf("%w: malformed expression", ErrParse)
		}
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("%w: malformed expression", ErrParse)
	}
	return stack[0], nil
}

func applyOp(op string, a, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return math.Mod(a, b), nil
	case "^":
		return math.Pow(a, b), nil
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrParse, op)
}

func applyFunc(name string, args []float64) (float64, error) {
	switch name {
	case "sqrt":
		if args[0] < 0 {
			return 0, errors.New("sqrt of negative number")
		}
		return math.Sqrt(args[0]), nil
	case "abs":
		return math.Abs(args[0]), nil
	case "min":
		return math.Min(args[0], args[1]), nil
	case "max":
		return math.Max(args[0], args[1]), nil
	case "pow":
		return math.Pow(args[0], args[1]), nil
	}
	return 0, fmt.Errorf("%w: unknown function %q", ErrParse, name)
}

// Format renders a result without trailing float noise.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', 12, 64)
}
