package helpers

// MemoryLimitBytes returns a soft memory limit for the process: 75% of total
// RAM, never below 256MB. It returns 0 when total memory can not be read so
// the caller can leave the runtime default alone.
func MemoryLimitBytes() int64 {
	totalMB := TotalSystemMemoryMB()
	if totalMB == 0 {
		return 0
	}

	limitMB := int64(float64(totalMB) * 0.75)
	if limitMB < 256 {
		limitMB = 256
		if int64(totalMB) < limitMB {
			limitMB = int64(totalMB)
		}
	}
	return limitMB * 1024 * 1024
}
