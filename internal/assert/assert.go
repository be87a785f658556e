// Package assert provides precondition, postcondition, and internal
// assertion checks. Failures panic with a *domain.AssertionError; building
// with the celer_ndebug tag turns every check into a no-op.
package assert

import (
	"path/filepath"
	"runtime"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// Expect checks a precondition on the caller's arguments.
func Expect(cond bool, what string) {
	if Enabled && !cond {
		fail("precondition", what)
	}
}

// Ensure checks a postcondition on the caller's result.
func Ensure(cond bool, what string) {
	if Enabled && !cond {
		fail("postcondition", what)
	}
}

// Assert checks an internal invariant.
func Assert(cond bool, what string) {
	if Enabled && !cond {
		fail("internal assertion", what)
	}
}

// Unreachable panics unconditionally.
func Unreachable(what string) {
	fail("unreachable code", what)
}

func fail(kind, what string) {
	_, file, line, _ := runtime.Caller(2)
	panic(&domain.AssertionError{
		Kind:      kind,
		Condition: what,
		File:      filepath.Base(file),
		Line:      line,
	})
}
