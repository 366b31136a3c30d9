package thumbnail

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
)

// Fingerprint is a stable hash over every field of the thumbnail.
func Fingerprint(t post.Thumbnail) string {
	content := fmt.Sprintf("%s|%d|%d", t.URL, t.Width, t.Height)
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// Accept reports whether t differs from the last image the feed posted.
// On acceptance the feed's fingerprint is updated in place; persisting it
// is the caller's job. The caller must hold the feed's lock.
func Accept(fc *feed.Context, t *post.Thumbnail) bool {
	if t == nil {
		return false
	}

	fingerprint := Fingerprint(*t)
	if fingerprint == fc.LastImageHash {
		return false
	}

	fc.LastImageHash = fingerprint
	return true
}
