package resource

import "fmt"

// MemoryLimitError is returned when a single reservation exceeds the limit.
type MemoryLimitError struct {
	Requested int64
	Limit     int64
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("resource: reservation of %d bytes exceeds memory limit of %d bytes", e.Requested, e.Limit)
}
