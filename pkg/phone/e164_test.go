package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsE164(t *testing.T) {
	valid := []string{"+13475551234", "+442071838750", "+14155552671"}
	for _, number := range valid {
		assert.True(t, IsE164(number), number)
	}

	invalid := []string{"", "5551234", "555-1234", "+0134755512", "13475551234", "+1 347 555 1234", "+123456789012345678"}
	for _, number := range invalid {
		assert.False(t, IsE164(number), number)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "+13475551234", Normalize(" +1 (347) 555-1234 "))
	assert.Equal(t, "+13475551234", Normalize("+1.347.555.1234"))
	assert.Equal(t, "5551234", Normalize("555-1234"))
}

func TestNormalizeThenValidate(t *testing.T) {
	// Normalization makes separators pass, but never invents a country code.
	assert.True(t, IsE164(Normalize("+1 (347) 555-1234")))
	assert.False(t, IsE164(Normalize("(347) 555-1234")))
}

func TestIsAreaCode(t *testing.T) {
	assert.True(t, IsAreaCode("347"))
	assert.False(t, IsAreaCode("34"))
	assert.False(t, IsAreaCode("3475"))
	assert.False(t, IsAreaCode("34a"))
	assert.False(t, IsAreaCode(""))
}
