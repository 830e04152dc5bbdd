package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

var phoneRes = []*regexp.Regexp{
	// International with country code.
	regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
	// US/Canada with optional parens.
	regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	// Plain 10-digit.
	regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`),
}

var nonPhoneCharRe = regexp.MustCompile(`[^\d+]`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// socialPatterns maps a platform name to the URL shapes that identify it.
// Order matters: the first platform whose pattern matches a link wins that
// link, and only the first link per platform is kept.
var socialPatterns = []struct {
	platform string
	patterns []*regexp.Regexp
}{
	{"linkedin", []*regexp.Regexp{
		regexp.MustCompile(`linkedin\.com/company/[\w-]+`),
		regexp.MustCompile(`linkedin\.com/in/[\w-]+`),
	}},
	{"twitter", []*regexp.Regexp{
		regexp.MustCompile(`twitter\.com/[\w-]+`),
		regexp.MustCompile(`x\.com/[\w-]+`),
	}},
	{"facebook", []*regexp.Regexp{regexp.MustCompile(`facebook\.com/[\w-]+`)}},
	{"instagram", []*regexp.Regexp{regexp.MustCompile(`instagram\.com/[\w-]+`)}},
	{"youtube", []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/channel/[\w-]+`),
		regexp.MustCompile(`youtube\.com/c/[\w-]+`),
		regexp.MustCompile(`youtube\.com/user/[\w-]+`),
	}},
	{"github", []*regexp.Regexp{regexp.MustCompile(`github\.com/[\w-]+`)}},
}

// techPatterns fingerprints common platforms and marketing tools from
// script sources, meta/link tags and raw page markup.
var techPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"WordPress", compileTech(`wp-content`, `wp-includes`, `wp-json`)},
	{"React", compileTech(`react`, `reactjs`, `jsx`)},
	{"Angular", compileTech(`ng-`, `angular`)},
	{"Vue.js", compileTech(`vue`, `vuejs`)},
	{"Bootstrap", compileTech(`bootstrap`)},
	{"jQuery", compileTech(`jquery`)},
	{"Shopify", compileTech(`shopify`)},
	{"Wix", compileTech(`wix`)},
	{"Squarespace", compileTech(`squarespace`)},
	{"Drupal", compileTech(`drupal`)},
	{"Joomla", compileTech(`joomla`)},
	{"Magento", compileTech(`magento`)},
	{"Google Analytics", compileTech(`google-analytics`, `gtag`, `ga\.js`)},
	{"HubSpot", compileTech(`hubspot`, `hs-script`)},
	{"Salesforce", compileTech(`salesforce`, `force\.com`)},
	{"Marketo", compileTech(`marketo`)},
	{"Intercom", compileTech(`intercom`)},
	{"Zendesk", compileTech(`zendesk`)},
	{"Mailchimp", compileTech(`mailchimp`)},
	{"Segment", compileTech(`segment\.io`, `segment\.com`)},
	{"Hotjar", compileTech(`hotjar`)},
	{"Google Tag Manager", compileTech(`googletagmanager`)},
}

func compileTech(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

// pageText extracts the visible main content of a document. Script,
// style and chrome elements are removed first.
func pageText(doc *goquery.Document) string {
	clone := goquery.CloneDocument(doc)
	clone.Find("script, style, header, footer, nav").Remove()
	text := clone.Find("body").Text()
	if text == "" {
		text = clone.Text()
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

// extractEmails returns all email addresses found in text.
func extractEmails(text string) []string {
	return emailRe.FindAllString(text, -1)
}

// extractPhones returns phone numbers reduced to digits (plus an optional
// leading +). Matches shorter than 7 digits are discarded.
func extractPhones(text string) []string {
	var raw []string
	for _, re := range phoneRes {
		raw = append(raw, re.FindAllString(text, -1)...)
	}

	var cleaned []string
	for _, p := range raw {
		digits := nonPhoneCharRe.ReplaceAllString(p, "")
		if len(strings.TrimPrefix(digits, "+")) >= 7 {
			cleaned = append(cleaned, digits)
		}
	}
	return cleaned
}

// extractSocialLinks returns a platform-to-URL map from anchor hrefs.
// Only the first link per platform is kept.
func extractSocialLinks(doc *goquery.Document) map[string]string {
	found := make(map[string]string)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		for _, sp := range socialPatterns {
			if _, ok := found[sp.platform]; ok {
				continue
			}
			for _, re := range sp.patterns {
				if re.MatchString(href) {
					found[sp.platform] = href
					break
				}
			}
		}
	})
	return found
}

// extractTechnologies fingerprints the page for known platforms. The raw
// markup is scanned, which covers script srcs, meta tags and inline code.
func extractTechnologies(doc *goquery.Document) []string {
	html, err := doc.Html()
	if err != nil {
		return nil
	}

	var techs []string
	for _, tp := range techPatterns {
		for _, re := range tp.patterns {
			if re.MatchString(html) {
				techs = append(techs, tp.name)
				break
			}
		}
	}
	return techs
}

var contactKeywords = []string{"contact", "reach us", "get in touch"}

// isContactPage reports whether the page looks like a contact page, based
// on its URL, title, headings and any form asking for an email address.
func isContactPage(pageURL string, doc *goquery.Document) bool {
	lowered := strings.ToLower(pageURL)
	for _, kw := range []string{"contact", "reach-us", "get-in-touch"} {
		if strings.Contains(lowered, kw) {
			return true
		}
	}

	title := strings.ToLower(doc.Find("title").First().Text())
	for _, kw := range contactKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}

	contactHeading := false
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		heading := strings.ToLower(sel.Text())
		for _, kw := range contactKeywords {
			if strings.Contains(heading, kw) {
				contactHeading = true
				return false
			}
		}
		return true
	})
	if contactHeading {
		return true
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return false
	}

	formText := strings.ToLower(form.Text())
	for _, kw := range []string{"contact", "message", "email us"} {
		if strings.Contains(formText, kw) {
			return true
		}
	}

	hasEmailInput := false
	form.Find("input").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		typ, _ := sel.Attr("type")
		name, _ := sel.Attr("name")
		if strings.EqualFold(typ, "email") || strings.Contains(strings.ToLower(name), "email") {
			hasEmailInput = true
			return false
		}
		return true
	})
	return hasEmailInput
}

// summarizeText truncates text to maxChars, preferring a sentence
// boundary when one falls in the last 30% of the window.
func summarizeText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	shortened := text[:maxChars]
	lastPeriod := strings.LastIndexByte(shortened, '.')
	if float64(lastPeriod) > float64(maxChars)*0.7 {
		return shortened[:lastPeriod+1]
	}
	return shortened
}

// dedupe removes duplicates while preserving first-seen order.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
