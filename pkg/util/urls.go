package util

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s'"<>\]\[,)]+`)

// FirstURL returns the first absolute http(s) URL found in s. The processing
// server typically answers with a list of source links, best match first.
func FirstURL(s string) (string, bool) {
	for _, m := range urlPattern.FindAllString(s, -1) {
		m = strings.TrimRight(m, ".;:")
		if u, err := url.Parse(m); err == nil && u.Host != "" {
			return m, true
		}
	}
	return "", false
}
