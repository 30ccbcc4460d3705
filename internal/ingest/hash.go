package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// bestLink returns the normalized original link, falling back to the portal
// mirror when the original is missing or unparseable.
func bestLink(originalURL, mirrorURL string) string {
	if normalized := NormalizeURL(originalURL); normalized != "" {
		return normalized
	}
	return NormalizeURL(mirrorURL)
}

// ContentHash identifies one article row. URL-bearing articles hash on the
// normalized URL so the same story fetched twice collapses; articles without
// any usable URL fall back to title plus publish date.
func ContentHash(company, originalURL, mirrorURL, title string, date time.Time) string {
	if normalized := bestLink(originalURL, mirrorURL); normalized != "" {
		return sha1Hex(company + "|" + normalized)
	}
	return sha1Hex(company + "|" + NormalizeTitle(title) + "|" + date.UTC().Format("2006-01-02"))
}

// SourceGroupID identifies a syndication cluster. URL-bearing articles key
// on host and path so the same outlet page always lands in one group;
// articles without any usable URL key on normalized title plus publish date.
func SourceGroupID(originalURL, mirrorURL, title string, date time.Time) string {
	if normalized := bestLink(originalURL, mirrorURL); normalized != "" {
		if u, err := url.Parse(normalized); err == nil && u.Host != "" {
			return sha1Hex(u.Host + strings.TrimRight(u.Path, "/"))
		}
	}
	return sha1Hex(NormalizeTitle(title) + "|" + date.UTC().Format("2006-01-02"))
}
