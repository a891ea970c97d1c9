//go:build !linux

package helpers

// TotalSystemMemoryMB is not implemented off Linux; callers keep runtime defaults.
func TotalSystemMemoryMB() int {
	return 0
}
