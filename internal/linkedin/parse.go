package linkedin

import (
	"regexp"
	"strconv"
	"strings"
)

var likeCountRe = regexp.MustCompile(`(\d+)`)

// nameFromPageTitle recovers a display name from a "<Name> | LinkedIn"
// document title.
func nameFromPageTitle(pageTitle string) string {
	name, _, _ := strings.Cut(pageTitle, "|")
	return strings.TrimSpace(name)
}

// splitTitleCompany splits a "<role> at <company>" headline. The company
// is empty when the headline has no " at " separator.
func splitTitleCompany(headline string) (title, company string) {
	title, company, found := strings.Cut(headline, " at ")
	title = strings.TrimSpace(title)
	if !found {
		return title, ""
	}
	return title, strings.TrimSpace(company)
}

// parseLikeCount extracts a like count from a social-actions summary such
// as "42 Likes · 6 Comments". Returns 0 when no count is present.
func parseLikeCount(social string) int {
	if !strings.Contains(strings.ToLower(social), "like") {
		return 0
	}
	m := likeCountRe.FindString(social)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// normalizeProfileURL trims trailing slashes so sub-view paths compose
// cleanly.
func normalizeProfileURL(profileURL string) string {
	return strings.TrimRight(strings.TrimSpace(profileURL), "/")
}
