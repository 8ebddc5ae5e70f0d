package validator_test

import (
	"testing"

	"github.com/abhissng/conduit/adapters/validator"
	"github.com/stretchr/testify/assert"
)

type inner struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

type settings struct {
	Broker inner  `mapstructure:"broker"`
	Mode   string `mapstructure:"mode" validate:"oneof=a b"`
}

func TestFailuresAreKeyedByMapstructurePath(t *testing.T) {
	v := validator.NewValidator()

	problems := v.ValidateStruct(settings{Broker: inner{URL: "not a url"}, Mode: "c"})
	assert.Equal(t, map[string]string{
		"broker.url": "url must be a valid URL",
		"mode":       "mode must be one of [a b]",
	}, problems)

	assert.Nil(t, v.ValidateStruct(settings{Broker: inner{URL: "nats://localhost:4222"}, Mode: "a"}))
}

func TestValidateField(t *testing.T) {
	v := validator.NewValidator()
	assert.Empty(t, v.ValidateField(3, "gte=1"))
	assert.NotEmpty(t, v.ValidateField(0, "gte=1"))
}
