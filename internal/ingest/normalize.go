package ingest

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	bracketPattern    = regexp.MustCompile(`^\s*[\[(【][^\])】]{0,12}[\])】]\s*`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// tracking query parameters stripped during URL normalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"igshid":       {},
	"ref":          {},
}

// NormalizeURL canonicalizes an article link for hashing: scheme forced to
// https so protocol variants of one page collapse, host lowercased with the
// "www." prefix removed, tracking parameters and fragment dropped, remaining
// query parameters sorted, trailing slash trimmed. Returns "" for
// unparseable or schemeless input.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	query := u.Query()
	for param := range query {
		if _, tracked := trackingParams[strings.ToLower(param)]; tracked {
			query.Del(param)
		}
	}

	u.Scheme = "https"
	u.Host = host
	u.RawQuery = query.Encode()
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String()
}

// NormalizeTitle canonicalizes a headline for hashing and similarity: HTML
// tags and entities resolved, one leading bracketed prefix such as "[단독]"
// removed, everything but letters, digits, and spaces dropped, whitespace
// collapsed, lowercased. The letter class covers Hangul, so Korean
// headlines survive intact.
func NormalizeTitle(raw string) string {
	text := tagPattern.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = bracketPattern.ReplaceAllString(text, "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	text = whitespacePattern.ReplaceAllString(b.String(), " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// StripHTML removes markup and resolves entities without the title-specific
// canonicalization, for description fields.
func StripHTML(raw string) string {
	text := tagPattern.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractOutlet derives the outlet host from an article link, preferring the
// original publisher link over the portal mirror.
func ExtractOutlet(originalLink, mirrorLink string) string {
	for _, link := range []string{originalLink, mirrorLink} {
		u, err := url.Parse(strings.TrimSpace(link))
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Host)
		host = strings.TrimPrefix(host, "www.")
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		return host
	}
	return ""
}
