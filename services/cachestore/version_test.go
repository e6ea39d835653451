package cachestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVersionEmbedsTag(t *testing.T) {
	v := NewVersion("v1.0.0", "pwa-ecommerce", "api-cache")
	assert.Equal(t, "pwa-ecommerce-v1.0.0", v.Static)
	assert.Equal(t, "api-cache-v1.0.0", v.API)
	assert.True(t, v.Current("api-cache-v1.0.0"))
	assert.False(t, v.Current("api-cache-v0.9.0"))
}
