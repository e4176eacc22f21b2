package condition

import (
	"fmt"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// Substitute replaces every `{a.b.c}` occurrence in s with the resolved
// value from ctx, using the same resolver the Evaluator uses. Unknown
// paths resolve to the empty string.
func Substitute(s string, ctx *Context) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := match[1 : len(match)-1]
		value, ok := ctx.Resolve(path)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
}
