package catalog

import "strings"

// Outlet authority tiers. Tier-1 national press amplifies a story far beyond
// the enthusiast sphere; game trade press sits in between; everything else
// (portals, blogs, regionals) gets the floor weight.
const (
	OutletTier1Weight     = 1.0
	OutletGameMediaWeight = 0.7
	OutletDefaultWeight   = 0.4
)

var outletTier1 = map[string]struct{}{
	"chosun.com":       {},
	"joins.com":        {},
	"donga.com":        {},
	"hani.co.kr":       {},
	"khan.co.kr":       {},
	"yna.co.kr":        {},
	"yonhapnews.co.kr": {},
	"kbs.co.kr":        {},
	"imbc.com":         {},
	"sbs.co.kr":        {},
}

var outletGameMedia = map[string]struct{}{
	"inven.co.kr":    {},
	"thisisgame.com": {},
	"gamemeca.com":   {},
}

// OutletWeight maps an outlet host to its authority weight.
func OutletWeight(host string) float64 {
	h := strings.ToLower(strings.TrimSpace(host))
	if _, ok := outletTier1[h]; ok {
		return OutletTier1Weight
	}
	if _, ok := outletGameMedia[h]; ok {
		return OutletGameMediaWeight
	}
	return OutletDefaultWeight
}
