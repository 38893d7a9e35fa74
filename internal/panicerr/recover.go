// Package panicerr turns a goroutine's abnormal exit (panic or
// runtime.Goexit) into a regular error return, the way a compiler's single
// non-local exit should look to its caller.
package panicerr

// Recover runs f synchronously, wrapped so that any panic propagating out of
// it is captured and returned as an error rather than crashing the caller.
// Unlike a direct recover() in the caller's own stack frame, this also
// catches runtime.Goexit by running f in its own goroutine.
func Recover(name string, f func() error) error {
	errch := make(chan error, 1)
	go func() {
		defer close(errch)
		defer recoverExitError(name, errch)
		defer recoverPanicError(name, errch)
		errch <- f()
	}()
	return <-errch
}
