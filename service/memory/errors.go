package memory

import "errors"

var (
	// ErrOutOfMemory is returned when an allocation cannot be satisfied even
	// after one eviction attempt.
	ErrOutOfMemory = errors.New("memory: out of memory")

	// ErrNoEvictableFrame is returned when eviction is required but every
	// candidate frame is pinned.
	ErrNoEvictableFrame = errors.New("memory: no evictable frame")

	// ErrUnknownProcess is returned for a process without an address space.
	ErrUnknownProcess = errors.New("memory: unknown process")

	// ErrSegmentationFault is returned for an address outside the process space.
	ErrSegmentationFault = errors.New("memory: segmentation fault")

	// ErrUnknownCategory is returned when no pool serves a category.
	ErrUnknownCategory = errors.New("memory: no pool for category")

	// ErrInvalidSize is returned for non positive allocation sizes.
	ErrInvalidSize = errors.New("memory: invalid allocation size")
)
