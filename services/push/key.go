package push

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeApplicationServerKey turns the URL-safe base64 VAPID public key the
// server advertises into the raw bytes a platform subscription expects.
func DecodeApplicationServerKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("decode application server key: empty key")
	}
	key = strings.TrimRight(key, "=")
	key = strings.NewReplacer("+", "-", "/", "_").Replace(key)
	raw, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode application server key: %w", err)
	}
	return raw, nil
}
