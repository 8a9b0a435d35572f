// Package gazetteer provides the process-wide read-only lookup of known entity
// surface forms (locations, categories, tags, contributors) and their Roman
// spelling variants. Built once at startup from corpus metadata, then served
// immutably to unbounded concurrent readers.
package gazetteer

import (
	"sort"
	"strings"

	"github.com/khoj-labs/khoj/internal/norm"
)

// EntityType classifies a gazetteer surface form.
type EntityType string

// Entity types, matching the corpus normalized metadata fields.
const (
	Location    EntityType = "location"
	Category    EntityType = "category"
	Tag         EntityType = "tag"
	Contributor EntityType = "contributor"
)

// Entry is one canonical Devanagari surface with its known Roman variants.
type Entry struct {
	Surface       string
	Type          EntityType
	RomanVariants []string
}

// Gazetteer is the immutable lookup. Roman variants are keyed in folded form
// for O(1) exact-match during canonicalization; surfaces are kept longest-first
// per type for phrase scanning during entity detection.
type Gazetteer struct {
	byRoman  map[string]Entry
	byType   map[EntityType][]Entry
	surfaces []string
}

// New builds a gazetteer from entries. Variant keys are folded with
// norm.Roman; the canonical surface itself is also registered as a variant
// so latin-script metadata (contributor names) remains matchable.
func New(entries []Entry) *Gazetteer {
	g := &Gazetteer{
		byRoman: make(map[string]Entry),
		byType:  make(map[EntityType][]Entry),
	}
	for _, e := range entries {
		e.Surface = norm.Devanagari(e.Surface)
		if e.Surface == "" {
			continue
		}
		g.byType[e.Type] = append(g.byType[e.Type], e)
		g.surfaces = append(g.surfaces, e.Surface)

		for _, v := range append([]string{e.Surface}, e.RomanVariants...) {
			key := norm.Roman(v)
			if key == "" {
				continue
			}
			// First writer wins so rebuilds stay deterministic.
			if _, ok := g.byRoman[key]; !ok {
				g.byRoman[key] = e
			}
		}
	}

	// Longest-first ordering for greedy phrase scanning.
	for t := range g.byType {
		es := g.byType[t]
		sort.Slice(es, func(i, j int) bool {
			if len(es[i].Surface) != len(es[j].Surface) {
				return len(es[i].Surface) > len(es[j].Surface)
			}
			return es[i].Surface < es[j].Surface
		})
	}
	sort.Strings(g.surfaces)

	return g
}

// LookupRoman returns the entry whose Roman variant set contains the folded
// form of tok.
func (g *Gazetteer) LookupRoman(tok string) (Entry, bool) {
	e, ok := g.byRoman[norm.Roman(tok)]
	return e, ok
}

// Surfaces returns all canonical Devanagari surfaces, sorted. Used to seed the
// canonicalizer's known-vocabulary set.
func (g *Gazetteer) Surfaces() []string {
	return g.surfaces
}

// Len returns the number of distinct Roman variant keys.
func (g *Gazetteer) Len() int { return len(g.byRoman) }

// phraseIn reports whether the normalized surface occurs as a substring of the
// query in either its raw or roman-folded form.
func phraseIn(surface, q, qRoman string) bool {
	s := strings.ToLower(strings.TrimSpace(surface))
	if s == "" {
		return false
	}
	if strings.Contains(q, s) {
		return true
	}
	if qRoman == "" {
		return false
	}
	sr := norm.Roman(s)
	return sr != "" && strings.Contains(qRoman, sr)
}
