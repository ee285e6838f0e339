package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("evt")
	assert.True(t, strings.HasPrefix(id, "evt_"))
	assert.Len(t, id, len("evt_")+36)
	assert.NotEqual(t, id, GenerateID("evt"))

	assert.Len(t, GenerateID(""), 36)
}
