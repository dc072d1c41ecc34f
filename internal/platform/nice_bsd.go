//go:build unix && !linux

package platform

func niceFromPriority(prio int) int {
	return prio
}
