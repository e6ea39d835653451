package interceptor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"pwashop/models"
	"pwashop/utils"
)

var errNoBearer = errors.New("no bearer token")

// BearerUserID reads the user id from the request's bearer token.
func BearerUserID(req *http.Request) (string, error) {
	h := req.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errNoBearer
	}
	return utils.ExtractIDFromToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
}

func hasCredentials(req *http.Request) bool {
	return req.Header.Get("Authorization") != "" || req.Header.Get("Cookie") != ""
}

// identify tells whose cache entries req may use. Anonymous requests share
// entries (empty user). A credentialed request that cannot be tied to a user
// must not touch the cache at all.
func (i *Interceptor) identify(req *http.Request) (userID string, cacheable bool) {
	if !hasCredentials(req) {
		return "", true
	}
	id, err := i.opts.Identify(req)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// cacheKey scopes the request key to userID. Anonymous keys stay unscoped so
// they line up with precached entries.
func cacheKey(userID string, req *http.Request) string {
	key := models.RequestKey(req.Method, req.URL.RequestURI())
	if userID == "" {
		return key
	}
	sum := sha256.Sum256([]byte(userID))
	return models.ScopedRequestKey(hex.EncodeToString(sum[:16]), key)
}

type cacheControl map[string]bool

func parseCacheControl(h http.Header) cacheControl {
	cc := cacheControl{}
	for _, line := range h.Values("Cache-Control") {
		for _, part := range strings.Split(line, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(part), "=")
			if name != "" {
				cc[strings.ToLower(name)] = true
			}
		}
	}
	return cc
}

// storable reports whether snap may be kept. Private responses only go into
// a per-user scope; shared entries never carry a response that sets cookies.
func storable(snap *models.ResponseSnapshot, perUser bool) bool {
	cc := parseCacheControl(snap.Header)
	if cc["no-store"] {
		return false
	}
	if perUser {
		return true
	}
	return !cc["private"] && len(snap.Header.Values("Set-Cookie")) == 0
}

func isPublic(snap *models.ResponseSnapshot) bool {
	return parseCacheControl(snap.Header)["public"]
}
