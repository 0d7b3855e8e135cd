package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// DetectedLink is a classified, platform-tagged URL extracted from free text.
// Immutable once created; it lives only for the single processing attempt.
type DetectedLink struct {
	Raw       string
	Platform  PlatformKind
	Canonical string
}

// urlShape is a structural URL template: the host must be exactly one of
// the listed domains and the path (plus query) must match the anchored
// expression. Host sets are disjoint across platforms; keep them that way
// when adding a platform.
type urlShape struct {
	hosts []string
	path  *regexp.Regexp
}

var platformShapes = []struct {
	platform PlatformKind
	shapes   []urlShape
}{
	{PlatformYouTube, []urlShape{
		{[]string{"youtube.com"}, regexp.MustCompile(`^/watch\?v=[A-Za-z0-9_-]{11}`)},
		{[]string{"youtu.be"}, regexp.MustCompile(`^/[A-Za-z0-9_-]{11}`)},
		{[]string{"youtube.com"}, regexp.MustCompile(`^/embed/[A-Za-z0-9_-]{11}`)},
		{[]string{"youtube.com"}, regexp.MustCompile(`^/v/[A-Za-z0-9_-]{11}`)},
		{[]string{"youtube.com"}, regexp.MustCompile(`^/shorts/[A-Za-z0-9_-]+`)},
	}},
	{PlatformInstagram, []urlShape{
		{[]string{"instagram.com"}, regexp.MustCompile(`^/(?:p|reel|reels|tv)/[A-Za-z0-9_-]+`)},
		{[]string{"instagram.com"}, regexp.MustCompile(`^/stories/[^/]+/[0-9]+`)},
	}},
	{PlatformTikTok, []urlShape{
		{[]string{"tiktok.com"}, regexp.MustCompile(`^/@[^/]+/video/[0-9]+`)},
		{[]string{"vm.tiktok.com"}, regexp.MustCompile(`^/[A-Za-z0-9]+`)},
		{[]string{"vt.tiktok.com"}, regexp.MustCompile(`^/[A-Za-z0-9]+`)},
		{[]string{"tiktok.com"}, regexp.MustCompile(`^/t/[A-Za-z0-9]+`)},
	}},
	{PlatformFacebook, []urlShape{
		{[]string{"facebook.com"}, regexp.MustCompile(`^/[^/]+/videos/[0-9]+`)},
		{[]string{"facebook.com"}, regexp.MustCompile(`^/watch/?\?v=[0-9]+`)},
		{[]string{"fb.watch"}, regexp.MustCompile(`^/[A-Za-z0-9_-]+`)},
	}},
}

// urlCandidateRe finds URL-shaped substrings, with or without a scheme.
var urlCandidateRe = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z0-9-]+\.)+[a-z]{2,}/[^\s]*`)

// Classify scans free text left to right and returns every substring that
// matches a known platform URL shape. Unrelated text yields an empty
// result, never an error. Duplicates are kept. No I/O.
func Classify(text string) []DetectedLink {
	var links []DetectedLink
	for _, raw := range urlCandidateRe.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,;:!?)")
		if link, ok := classifyOne(raw); ok {
			links = append(links, link)
		}
	}
	return links
}

func classifyOne(raw string) (DetectedLink, bool) {
	withScheme := raw
	if !strings.HasPrefix(strings.ToLower(raw), "http://") && !strings.HasPrefix(strings.ToLower(raw), "https://") {
		withScheme = "https://" + raw
	}

	u, err := url.Parse(withScheme)
	if err != nil || u.Host == "" {
		return DetectedLink{}, false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	pathAndQuery := u.EscapedPath()
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}

	for _, entry := range platformShapes {
		for _, shape := range entry.shapes {
			if hostIn(shape.hosts, host) && shape.path.MatchString(pathAndQuery) {
				return DetectedLink{
					Raw:       raw,
					Platform:  entry.platform,
					Canonical: "https://" + host + pathAndQuery,
				}, true
			}
		}
	}

	return DetectedLink{}, false
}

func hostIn(hosts []string, host string) bool {
	for _, h := range hosts {
		if h == host {
			return true
		}
	}
	return false
}
