//go:build !celer_ndebug

package assert

// Enabled is true when assertions are checked.
const Enabled = true
