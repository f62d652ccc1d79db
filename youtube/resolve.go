// Package youtube identifies YouTube videos from pasted links and looks up
// their display metadata.
package youtube

import (
	"regexp"
	"strings"
)

var videoIDRe = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

var bareIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ResolveID extracts the 11 character video id from a YouTube URL. A bare
// video id is accepted as is.
func ResolveID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if bareIDRe.MatchString(raw) {
		return raw, true
	}
	m := videoIDRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ThumbnailURL returns the medium quality thumbnail URL for a video id.
func ThumbnailURL(id string) string {
	return "https://img.youtube.com/vi/" + id + "/mqdefault.jpg"
}
