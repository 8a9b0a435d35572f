package gazetteer

import (
	"strings"

	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/query"
	"github.com/khoj-labs/khoj/internal/norm"
)

// maxPerType caps how many surfaces one query may match per entity type.
const maxPerType = 3

// Detection is the outcome of scanning a query for known entities.
// Confidence heuristic: phrase substring match counts 2, token overlap 1.
type Detection struct {
	Matches    map[EntityType][]string
	Confidence map[EntityType]int
}

// Detect scans the query text used for retrieval against known entity
// surfaces. Contributors are matched phrase-only to avoid false positives on
// common name tokens; other types also fall back to token overlap.
func (g *Gazetteer) Detect(queryUsed string, mode query.Mode) Detection {
	q := strings.ToLower(strings.TrimSpace(queryUsed))
	qTokens := make(map[string]struct{})
	for _, t := range norm.Tokenize(q) {
		qTokens[t] = struct{}{}
	}
	var qRoman string
	if mode != query.ModeDev {
		qRoman = norm.Roman(q)
	}

	d := Detection{
		Matches:    make(map[EntityType][]string),
		Confidence: make(map[EntityType]int),
	}
	d.scan(g, Location, q, qRoman, qTokens, true)
	d.scan(g, Contributor, q, qRoman, qTokens, false)
	d.scan(g, Category, q, qRoman, qTokens, true)
	d.scan(g, Tag, q, qRoman, qTokens, true)
	return d
}

func (d *Detection) scan(
	g *Gazetteer, t EntityType, q, qRoman string,
	qTokens map[string]struct{}, allowToken bool,
) {
	var got []string
	score := 0

	// Phrase pass, longest surfaces first.
	for _, e := range g.byType[t] {
		if len(got) >= maxPerType {
			break
		}
		if phraseIn(e.Surface, q, qRoman) {
			got = append(got, e.Surface)
			score += 2
		}
	}

	if allowToken && len(got) < maxPerType {
		for _, e := range g.byType[t] {
			if len(got) >= maxPerType {
				break
			}
			if contains(got, e.Surface) {
				continue
			}
			for _, tok := range norm.Tokenize(e.Surface) {
				if _, ok := qTokens[tok]; ok {
					got = append(got, e.Surface)
					score++
					break
				}
			}
		}
	}

	if len(got) > 0 {
		d.Matches[t] = got
		d.Confidence[t] = score
	}
}

// DetectFilter combines detection and auto-filter derivation.
func (g *Gazetteer) DetectFilter(queryUsed string, mode query.Mode) facet.Filter {
	return g.Detect(queryUsed, mode).AutoFilter()
}

// AutoFilter derives a conservative facet filter from detected entities:
// locations always apply, contributors only on a phrase match, categories and
// tags only on multiple phrase hits.
func (d Detection) AutoFilter() facet.Filter {
	var f facet.Filter
	if vals := d.Matches[Location]; len(vals) > 0 {
		f.Locations = vals
	}
	if vals := d.Matches[Contributor]; len(vals) > 0 && d.Confidence[Contributor] >= 2 {
		f.Contributors = vals
	}
	if vals := d.Matches[Category]; len(vals) > 0 && d.Confidence[Category] >= 4 {
		f.Categories = vals
	}
	if vals := d.Matches[Tag]; len(vals) > 0 && d.Confidence[Tag] >= 4 {
		f.Tags = vals
	}
	return f
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
