package assert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

func TestExpect_PanicsWithAssertionError(t *testing.T) {
	if !Enabled {
		t.Skip("assertions disabled")
	}
	defer func() {
		r := recover()
		require.NotNil(t, r)
		ae, ok := r.(*domain.AssertionError)
		require.True(t, ok, "panic payload = %T", r)
		require.Equal(t, "precondition", ae.Kind)
		require.Equal(t, "size > 0", ae.Condition)
		require.Equal(t, "assert_test.go", ae.File)
	}()
	Expect(false, "size > 0")
}

func TestChecks_PassWhenTrue(t *testing.T) {
	require.NotPanics(t, func() {
		Expect(true, "a")
		Ensure(true, "b")
		Assert(true, "c")
	})
}
