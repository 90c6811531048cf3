package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("COMMERCE_TEST_VALUE", "  console ")
	assert.Equal(t, "console", Get("COMMERCE_TEST_VALUE", "json"))

	t.Setenv("COMMERCE_TEST_VALUE", "   ")
	assert.Equal(t, "json", Get("COMMERCE_TEST_VALUE", "json"))
}

func TestFirstSkipsBlankKeys(t *testing.T) {
	t.Setenv("COMMERCE_TEST_A", "")
	t.Setenv("COMMERCE_TEST_B", "web.1")
	assert.Equal(t, "web.1", First("COMMERCE_TEST_A", "COMMERCE_TEST_B"))
	assert.Empty(t, First("COMMERCE_TEST_A"))
}
