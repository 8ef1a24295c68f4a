// Package profile implements the project profile selector
// (`none`/`kernel`/`wine`): a name-keyed table of which allocator, free,
// lock, and unlock function names the engine (and the reference checkers
// in internal/checkers) recognize for a given `--project` flag value.
package profile

import "fmt"

// Profile selects which allocator/free-function names are recognized.
type Profile int

const (
	None Profile = iota
	Kernel
	Wine
)

// Parse maps a `--project=<name>` flag value to a Profile.
func Parse(name string) (Profile, error) {
	switch name {
	case "", "none":
		return None, nil
	case "kernel":
		return Kernel, nil
	case "wine":
		return Wine, nil
	default:
		return None, fmt.Errorf("profile: unknown project %q (want none, kernel, or wine)", name)
	}
}

func (p Profile) String() string {
	switch p {
	case Kernel:
		return "kernel"
	case Wine:
		return "wine"
	default:
		return "none"
	}
}

// AllocatorFuncs lists the names recognized as heap-allocating functions
// whose result should be tracked as a fresh, unfreed pointer.
func (p Profile) AllocatorFuncs() []string {
	switch p {
	case Kernel:
		return []string{"kmalloc", "kzalloc", "kcalloc", "vmalloc", "devm_kzalloc", "kmalloc_array"}
	case Wine:
		return []string{"malloc", "calloc", "HeapAlloc", "heap_alloc"}
	default:
		return []string{"malloc", "calloc", "realloc"}
	}
}

// FreeFuncs lists the names recognized as releasing a pointer previously
// returned by one of AllocatorFuncs.
func (p Profile) FreeFuncs() []string {
	switch p {
	case Kernel:
		return []string{"kfree", "vfree", "devm_kfree"}
	case Wine:
		return []string{"free", "HeapFree", "heap_free"}
	default:
		return []string{"free"}
	}
}

// LockFuncs and UnlockFuncs drive the reference `locking` checker's
// pairing.
func (p Profile) LockFuncs() []string {
	if p == Kernel {
		return []string{"spin_lock", "spin_lock_irq", "mutex_lock"}
	}
	return []string{"lock"}
}

func (p Profile) UnlockFuncs() []string {
	if p == Kernel {
		return []string{"spin_unlock", "spin_unlock_irq", "mutex_unlock"}
	}
	return []string{"unlock"}
}

// IsAllocator reports whether name is a recognized allocator under p.
func (p Profile) IsAllocator(name string) bool { return contains(p.AllocatorFuncs(), name) }

// IsFree reports whether name is a recognized free function under p.
func (p Profile) IsFree(name string) bool { return contains(p.FreeFuncs(), name) }

// IsLock reports whether name is a recognized lock function under p.
func (p Profile) IsLock(name string) bool { return contains(p.LockFuncs(), name) }

// IsUnlock reports whether name is a recognized unlock function under p.
func (p Profile) IsUnlock(name string) bool { return contains(p.UnlockFuncs(), name) }

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
