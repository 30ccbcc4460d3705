// Package catalog holds the declarative monitoring tables: which game IPs are
// tracked, how article text maps to an IP, how themes are classified and
// weighted, and how outlet hosts are tiered. All matching here is data-driven
// so new IPs or themes are added by editing tables, not scoring code.
package catalog

import (
	"errors"
	"strings"
)

// ErrUnsupportedIP is returned for an IP slug that is not in the catalog.
// Callers should treat it as a client-input error, never retry it.
var ErrUnsupportedIP = errors.New("unsupported ip")

// AggregateSlug is the pseudo-IP covering all coverage for the company,
// bypassing keyword scoping.
const AggregateSlug = "all"

// IP is one monitored game title.
type IP struct {
	Slug     string
	Name     string
	Keywords []string
}

// IsAggregate reports whether this entry is the catch-all pseudo-IP.
func (ip IP) IsAggregate() bool {
	return ip.Slug == AggregateSlug
}

// Matches reports whether the lower-cased article text mentions this IP.
func (ip IP) Matches(lowerText string) bool {
	for _, kw := range ip.Keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

var ips = []IP{
	{Slug: AggregateSlug, Name: "전체"},
	{Slug: "maplestory", Name: "메이플스토리", Keywords: []string{"메이플스토리", "메이플", "maplestory"}},
	{Slug: "dnf", Name: "던전앤파이터", Keywords: []string{"던전앤파이터", "던파", "dnf"}},
	{Slug: "arcraiders", Name: "아크레이더스", Keywords: []string{"아크레이더스", "아크 레이더스", "arc raiders", "arcraiders"}},
	{Slug: "fconline", Name: "FC온라인", Keywords: []string{"fc온라인", "fc online", "fconline", "피파온라인", "fifa온라인", "ea sports fc online"}},
	{Slug: "bluearchive", Name: "블루아카이브", Keywords: []string{"블루아카이브", "블루 아카이브", "블루아카", "blue archive"}},
}

// Entries returns the catalog in its configured order, aggregate first.
func Entries() []IP {
	out := make([]IP, len(ips))
	copy(out, ips)
	return out
}

// Resolve maps a slug (case-insensitive, empty means aggregate) to its
// catalog entry.
func Resolve(slug string) (IP, error) {
	v := strings.ToLower(strings.TrimSpace(slug))
	if v == "" {
		v = AggregateSlug
	}
	for _, ip := range ips {
		if ip.Slug == v {
			return ip, nil
		}
	}
	return IP{}, ErrUnsupportedIP
}

// DetectIP returns the first catalog IP whose keywords appear in the text.
// The aggregate entry never matches. Text may be any case.
func DetectIP(text string) (IP, bool) {
	low := strings.ToLower(text)
	for _, ip := range ips {
		if ip.IsAggregate() {
			continue
		}
		if ip.Matches(low) {
			return ip, true
		}
	}
	return IP{}, false
}
