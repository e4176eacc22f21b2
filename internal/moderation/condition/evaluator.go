package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/modsentinel/automod/internal/moderation/model"
)

// Evaluator evaluates a rule's condition tree against a Context.
type Evaluator struct {
	Warn func(msg string)
}

// NewEvaluator returns an Evaluator. warn, if non-nil, receives a message
// for each non-fatal evaluation problem (e.g. a bad regex).
func NewEvaluator(warn func(string)) *Evaluator {
	if warn == nil {
		warn = func(string) {}
	}
	return &Evaluator{Warn: warn}
}

// Evaluate short-circuit recursively evaluates node against ctx.
func (e *Evaluator) Evaluate(node model.ConditionNode, ctx *Context) bool {
	if !node.IsLeaf() {
		return e.evaluateComposite(node, ctx)
	}
	return e.evaluateLeaf(node, ctx)
}

func (e *Evaluator) evaluateComposite(node model.ConditionNode, ctx *Context) bool {
	switch strings.ToUpper(node.LogicalOperator) {
	case "AND":
		for _, child := range node.Rules {
			if !e.Evaluate(child, ctx) {
				return false
			}
		}
		return true
	case "OR":
		for _, child := range node.Rules {
			if e.Evaluate(child, ctx) {
				return true
			}
		}
		return false
	case "NOT":
		if len(node.Rules) == 0 {
			return false
		}
		return !e.Evaluate(node.Rules[0], ctx)
	default:
		e.Warn(fmt.Sprintf("unknown logical operator %q", node.LogicalOperator))
		return false
	}
}

func (e *Evaluator) evaluateLeaf(node model.ConditionNode, ctx *Context) bool {
	value, exists := ctx.Resolve(node.Field)

	switch node.Operator {
	case "exists":
		return exists
	case "notExists":
		return !exists
	}

	if !exists {
		// Missing fields compare unequal to any concrete value, for every
		// operator except exists/notExists handled above.
		return false
	}

	switch node.Operator {
	case "==":
		return compareEqual(value, node.Value)
	case "!=":
		return !compareEqual(value, node.Value)
	case ">", ">=", "<", "<=":
		return compareNumeric(node.Operator, value, node.Value, e.Warn)
	case "contains":
		return stringOp(value, node.Value, node.CaseSensitive, strings.Contains)
	case "startsWith":
		return stringOp(value, node.Value, node.CaseSensitive, strings.HasPrefix)
	case "endsWith":
		return stringOp(value, node.Value, node.CaseSensitive, strings.HasSuffix)
	case "in":
		return inList(value, node.Value)
	case "matches":
		return matchesRegex(value, node.Value, e.Warn)
	default:
		e.Warn(fmt.Sprintf("unknown operator %q on field %q", node.Operator, node.Field))
		return false
	}
}

func compareEqual(a, b interface{}) bool {
	an, aOK := toNumber(a)
	bn, bOK := toNumber(b)
	if aOK && bOK {
		return an == bn
	}

	ab, aIsBool := toBool(a)
	bb, bIsBool := toBool(b)
	if aIsBool && bIsBool {
		return ab == bb
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareNumeric(op string, a, b interface{}, warn func(string)) bool {
	an, aOK := toNumber(a)
	bn, bOK := toNumber(b)
	if !aOK || !bOK {
		warn(fmt.Sprintf("operator %q requires numeric operands", op))
		return false
	}
	switch op {
	case ">":
		return an > bn
	case ">=":
		return an >= bn
	case "<":
		return an < bn
	case "<=":
		return an <= bn
	default:
		return false
	}
}

func stringOp(a, b interface{}, caseSensitive bool, op func(s, substr string) bool) bool {
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	if !caseSensitive {
		as = strings.ToLower(as)
		bs = strings.ToLower(bs)
	}
	return op(as, bs)
}

func inList(value, list interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEqual(value, item) {
			return true
		}
	}
	return false
}

func matchesRegex(value, pattern interface{}, warn func(string)) bool {
	ps := fmt.Sprintf("%v", pattern)
	re, err := regexp.Compile(ps)
	if err != nil {
		warn(fmt.Sprintf("invalid regex %q: %v", ps, err))
		return false
	}
	return re.MatchString(fmt.Sprintf("%v", value))
}

// toNumber coerces common numeric representations (including JSON
// float64, int, and numeric strings) to float64.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toBool normalizes Go bools and the "Yes"/"No" string convention used by
// installation settings.
func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(b) {
		case "yes", "true":
			return true, true
		case "no", "false":
			return false, true
		}
	}
	return false, false
}
