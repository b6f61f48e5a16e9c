package ticker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBootstrapTrackerDefaultsToNotDone(t *testing.T) {
	b := NewBootstrapTracker()
	assert.False(t, b.IsDone("acc1"))
}

func TestBootstrapTrackerMarkDone(t *testing.T) {
	b := NewBootstrapTracker()
	b.MarkDone("acc1")
	assert.True(t, b.IsDone("acc1"))
	assert.False(t, b.IsDone("acc2"))
}

func TestBootstrapTrackerResetAll(t *testing.T) {
	b := NewBootstrapTracker()
	b.MarkDone("acc1")
	b.MarkDone("acc2")

	b.ResetAll()
	assert.False(t, b.IsDone("acc1"))
	assert.False(t, b.IsDone("acc2"))
}
