package utils

// Guard collects cleanup functions for a constructor that acquires several resources in a row
// (e.g: pins, then an interrupt line, then a bus). If the constructor fails partway through, the
// cleanups registered so far run in reverse order. Correct usage:
//
//	guard := NewGuard()
//	defer guard.OnFail()
//	pin, err := open()
//	if err != nil { return err }
//	guard.Add(func() { pin.Close() })
//	...
//	guard.Success()
//	return nil
type Guard struct {
	cleanups []func()
	success  bool
}

// NewGuard returns a Guard, optionally seeded with cleanup functions.
func NewGuard(onFailCleanups ...func()) *Guard {
	return &Guard{cleanups: onFailCleanups}
}

// Add registers another cleanup to run on failure.
func (guard *Guard) Add(onFailCleanup func()) {
	guard.cleanups = append(guard.cleanups, onFailCleanup)
}

// OnFail runs the registered cleanups, newest first, unless Success was called.
func (guard *Guard) OnFail() {
	if guard.success {
		return
	}
	for idx := len(guard.cleanups) - 1; idx >= 0; idx-- {
		guard.cleanups[idx]()
	}
}

// Success declares the function succeeded and the "failure" cleanup code does not need to be
// executed.
func (guard *Guard) Success() {
	guard.success = true
}
