package gazetteer

import (
	"testing"

	"github.com/khoj-labs/khoj/internal/domain/query"
)

func testEntries() []Entry {
	return []Entry{
		{Surface: "जयपुर", Type: Location, RomanVariants: []string{"jaipur"}},
		{Surface: "राजस्थान", Type: Location, RomanVariants: []string{"rajasthan"}},
		{Surface: "शिक्षा", Type: Category, RomanVariants: []string{"shiksha"}},
		{Surface: "स्वास्थ्य", Type: Category, RomanVariants: []string{"swasthya"}},
		{Surface: "योजना", Type: Tag, RomanVariants: []string{"yojana"}},
		{Surface: "Ravi Sharma", Type: Contributor},
	}
}

func TestLookupRoman(t *testing.T) {
	g := New(testEntries())

	tests := []struct {
		tok      string
		want     string
		wantOK   bool
		wantType EntityType
	}{
		{"jaipur", "जयपुर", true, Location},
		{"Jaipur", "जयपुर", true, Location},
		{"yojana", "योजना", true, Tag},
		{"yojna", "योजना", true, Tag}, // spelling variant folds onto the same key
		{"ravi sharma", "Ravi Sharma", true, Contributor},
		{"unknown", "", false, ""},
	}
	for _, tt := range tests {
		e, ok := g.LookupRoman(tt.tok)
		if ok != tt.wantOK {
			t.Errorf("LookupRoman(%q) ok = %v, want %v", tt.tok, ok, tt.wantOK)
			continue
		}
		if ok && (e.Surface != tt.want || e.Type != tt.wantType) {
			t.Errorf("LookupRoman(%q) = %+v, want %q/%q", tt.tok, e, tt.want, tt.wantType)
		}
	}
}

func TestNewFirstWriterWins(t *testing.T) {
	g := New([]Entry{
		{Surface: "जयपुर", Type: Location, RomanVariants: []string{"jaipur"}},
		{Surface: "जयपुर शहर", Type: Tag, RomanVariants: []string{"jaipur"}},
	})
	e, ok := g.LookupRoman("jaipur")
	if !ok || e.Surface != "जयपुर" {
		t.Errorf("LookupRoman(jaipur) = %+v, want first-registered जयपुर", e)
	}
}

func TestSurfacesSorted(t *testing.T) {
	g := New(testEntries())
	surfaces := g.Surfaces()
	if len(surfaces) != len(testEntries()) {
		t.Fatalf("Surfaces len = %d, want %d", len(surfaces), len(testEntries()))
	}
	for i := 1; i < len(surfaces); i++ {
		if surfaces[i-1] > surfaces[i] {
			t.Fatalf("Surfaces not sorted at %d: %q > %q", i, surfaces[i-1], surfaces[i])
		}
	}
}

func TestDetectPhraseMatch(t *testing.T) {
	g := New(testEntries())

	d := g.Detect("जयपुर योजना", query.ModeDev)
	if got := d.Matches[Location]; len(got) != 1 || got[0] != "जयपुर" {
		t.Errorf("locations = %v, want [जयपुर]", got)
	}
	if d.Confidence[Location] != 2 {
		t.Errorf("location confidence = %d, want 2 for a phrase match", d.Confidence[Location])
	}
}

func TestDetectRomanQuery(t *testing.T) {
	g := New(testEntries())

	d := g.Detect("jaipur yojana", query.ModeRoman)
	if got := d.Matches[Location]; len(got) != 1 || got[0] != "जयपुर" {
		t.Errorf("locations = %v, want [जयपुर] via roman variant", got)
	}
}

func TestDetectContributorPhraseOnly(t *testing.T) {
	g := New(testEntries())

	// Full name matches as a phrase.
	d := g.Detect("articles by ravi sharma", query.ModeRoman)
	if got := d.Matches[Contributor]; len(got) != 1 {
		t.Errorf("contributors = %v, want the full-name phrase match", got)
	}

	// A lone shared name token must not match: contributors skip the token
	// overlap pass.
	d = g.Detect("ravi", query.ModeRoman)
	if got := d.Matches[Contributor]; len(got) != 0 {
		t.Errorf("contributors = %v, want none for a bare first name", got)
	}
}

func TestAutoFilterThresholds(t *testing.T) {
	g := New(testEntries())

	// A single category phrase hit (confidence 2) stays below the category
	// threshold; the location still applies.
	f := g.Detect("जयपुर शिक्षा", query.ModeDev).AutoFilter()
	if len(f.Locations) != 1 {
		t.Errorf("Locations = %v, want the detected location", f.Locations)
	}
	if len(f.Categories) != 0 {
		t.Errorf("Categories = %v, want none below confidence threshold", f.Categories)
	}

	// Two category phrase hits reach confidence 4 and pass.
	f = g.Detect("जयपुर शिक्षा स्वास्थ्य", query.ModeDev).AutoFilter()
	if len(f.Categories) != 2 {
		t.Errorf("Categories = %v, want both detected categories", f.Categories)
	}
}

func TestDetectCapsMatchesPerType(t *testing.T) {
	entries := []Entry{
		{Surface: "एक", Type: Tag},
		{Surface: "दो", Type: Tag},
		{Surface: "तीन", Type: Tag},
		{Surface: "चार", Type: Tag},
	}
	g := New(entries)

	d := g.Detect("एक दो तीन चार", query.ModeDev)
	if got := len(d.Matches[Tag]); got != 3 {
		t.Errorf("tag matches = %d, want cap of 3", got)
	}
}
