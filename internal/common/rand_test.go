package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandByteArray(t *testing.T) {
	b1 := GenerateRandByteArray(16)
	assert.Len(t, b1, 16)
	assert.NotEqual(t, b1, GenerateRandByteArray(16))
}

func TestMakeRandNumericCode(t *testing.T) {
	c, err := MakeRandNumericCode(6)
	require.NoError(t, err)
	assert.Len(t, c, 6)
	for _, r := range c {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NewError(CodeQuotaExceeded, "max %d orgs", 3)
	assert.ErrorIs(t, err, ErrorQuotaExceeded)
	assert.NotErrorIs(t, err, ErrorNotFound)
	assert.Equal(t, "QUOTA_EXCEEDED: max 3 orgs", err.Error())
}
