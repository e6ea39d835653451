package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"/", "/offline.html"}, splitList(" /, /offline.html ,,"))
	assert.Nil(t, splitList(""))
}

func TestIsProduction(t *testing.T) {
	prev := AppConfig
	t.Cleanup(func() { AppConfig = prev })

	AppConfig.Env = "production"
	assert.True(t, IsProduction())
	AppConfig.Env = "development"
	assert.False(t, IsProduction())
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	assert.ErrorIs(t, Config{Env: "production"}.Validate(), ErrMissingJWTSecret)
	assert.NoError(t, Config{Env: "production", JWTSecret: "s3cret"}.Validate())
	assert.NoError(t, Config{Env: "development"}.Validate())
}
