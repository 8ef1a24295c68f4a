package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKnownProfiles(t *testing.T) {
	for name, want := range map[string]Profile{
		"":       None,
		"none":   None,
		"kernel": Kernel,
		"wine":   Wine,
	} {
		got, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseRejectsUnknownProject(t *testing.T) {
	_, err := Parse("freebsd")
	assert.Error(t, err)
}

func TestKernelProfileRecognizesKernelAllocators(t *testing.T) {
	assert.True(t, Kernel.IsAllocator("kmalloc"))
	assert.True(t, Kernel.IsFree("kfree"))
	assert.False(t, Kernel.IsAllocator("malloc"))
}

func TestDefaultProfileRecognizesLibcAllocators(t *testing.T) {
	assert.True(t, None.IsAllocator("malloc"))
	assert.True(t, None.IsFree("free"))
	assert.False(t, None.IsFree("kfree"))
}

func TestKernelLockPairing(t *testing.T) {
	assert.True(t, Kernel.IsLock("spin_lock"))
	assert.True(t, Kernel.IsUnlock("spin_unlock"))
	assert.False(t, Kernel.IsLock("spin_unlock"))
}
