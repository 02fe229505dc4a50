package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ada@example.com", Normalize("  Ada@Example.COM "))
	assert.Equal(t, "", Normalize("   "))
}

func TestValid(t *testing.T) {
	valid := []string{"ada@example.com", "a.b+tag@sub.example.org"}
	for _, addr := range valid {
		assert.True(t, Valid(addr), addr)
	}

	invalid := []string{"", "not-an-email", "@example.com", "ada@", "Ada <ada@example.com>"}
	for _, addr := range invalid {
		assert.False(t, Valid(addr), addr)
	}
}
