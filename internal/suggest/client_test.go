package suggest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harlowes/magpie/internal/common"
)

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "oracle", APIKey: "key"})
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai"} {
		_, err := NewClient(Config{Provider: provider})
		assert.True(t, errors.Is(err, common.ErrMissingConfig), provider)
	}
}
