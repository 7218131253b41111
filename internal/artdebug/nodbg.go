//go:build !debug

package artdebug

// Enabled is false in release builds; every call below compiles to a no-op
// so the QSBR and tree packages can call these unconditionally.
const Enabled = false

func Log(format string, args ...any)       {}
func RegisterActivePointer(p uintptr)      {}
func ReleaseActivePointer(p uintptr)       {}
func AssertNoActivePointers()              {}
