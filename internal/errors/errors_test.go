package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomy(t *testing.T) {
	structural := NewMalformedFactError("f1", "confidence %.2f outside [0,1]", 1.5)
	dangling := Wrapf(ErrDanglingReference, "alert %s references %q", "DVT_001", "ghost")
	config := NewConfigError("pod_ceiling", "must be positive, got %d", 0)

	assert.True(t, IsStructural(structural))
	assert.True(t, IsStructural(dangling))
	assert.False(t, IsStructural(config))

	assert.True(t, IsConfigError(config))
	assert.False(t, IsConfigError(structural))
	assert.False(t, IsStructural(nil))

	assert.Contains(t, structural.Error(), `fact "f1"`)
	assert.NotEmpty(t, GetAllHints(config))
}
