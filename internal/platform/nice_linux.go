package platform

// The raw Linux getpriority syscall returns 20 - nice so the result is never
// negative; libc undoes this, x/sys/unix does not.
func niceFromPriority(prio int) int {
	return 20 - prio
}
