// Package preprocess rewrites macro-expanded expressions into the form the
// trampoline consumes: every user identifier gains an "&" prefix, and every
// expression is converted to continuation-passing style.
package preprocess

import (
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// FormatNames prefixes every Name in the tree with "&" so that generated
// names and the sentinel "no-continuation" can never collide with a user
// identifier. The pass is idempotent: names already starting with "&" are
// left alone.
func FormatNames(v value.Value) value.Value {
	switch n := v.(type) {
	case value.Name:
		if len(n) == 0 || n[0] == '&' {
			return v
		}
		return value.Name("&" + string(n))
	case *value.Cons:
		return &value.Cons{
			Car: FormatNames(n.Car),
			Cdr: FormatNames(n.Cdr),
		}
	default:
		return v
	}
}
