package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	for _, c := range Categories() {
		assert.NotEmpty(t, Default(c), c)
	}
	assert.Contains(t, Default("EQUIPMENT"), "장비")
	assert.Equal(t, Default(CategorySafety), Default("unknown"))
}

func TestGetSystemPrompt(t *testing.T) {
	sp := GetSystemPrompt()
	assert.Contains(t, sp, "점수")
	assert.Contains(t, sp, "문제점")
	assert.Contains(t, sp, "권고사항")
}
