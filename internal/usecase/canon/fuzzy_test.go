package canon

import "testing"

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"महिल", "महिला", 1},
		{"योजन", "योजना", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := editDistance([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVocabularyClosest(t *testing.T) {
	v := NewVocabulary(map[string]int{
		"महिला": 10,
		"योजना": 8,
		"सरकार": 5,
	}, nil)

	best, d1, d2 := v.Closest("महिल")
	if best != "महिला" || d1 != 1 {
		t.Errorf("Closest(महिल) = (%q, %d), want (महिला, 1)", best, d1)
	}
	if d2 <= d1 {
		t.Errorf("second distance %d not greater than best %d", d2, d1)
	}
}

func TestVocabularyClosestExact(t *testing.T) {
	v := NewVocabulary(map[string]int{"योजना": 1}, nil)
	best, d1, _ := v.Closest("योजना")
	if best != "योजना" || d1 != 0 {
		t.Errorf("Closest(योजना) = (%q, %d), want (योजना, 0)", best, d1)
	}
}

func TestVocabularyClosestEmpty(t *testing.T) {
	v := NewVocabulary(nil, nil)
	best, d1, d2 := v.Closest("महिला")
	if best != "" {
		t.Errorf("best = %q, want empty", best)
	}
	if d1 != 1<<30 || d2 != 1<<30 {
		t.Errorf("distances = (%d, %d), want sentinel max", d1, d2)
	}
}

func TestVocabularyIncludesExtraSurfaces(t *testing.T) {
	v := NewVocabulary(nil, []string{"जयपुर", ""})
	if v.Size() != 1 {
		t.Fatalf("Size = %d, want 1", v.Size())
	}
	best, d1, _ := v.Closest("जयपुर")
	if best != "जयपुर" || d1 != 0 {
		t.Errorf("Closest = (%q, %d), want (जयपुर, 0)", best, d1)
	}
}

func TestVocabularyDeterministic(t *testing.T) {
	freq := map[string]int{"महिला": 1, "महिमा": 1}
	for i := 0; i < 10; i++ {
		v := NewVocabulary(freq, nil)
		// Both are distance 1 from महिला-minus-final; sorted bucket order
		// makes the winner stable across rebuilds.
		best, _, _ := v.Closest("महिल")
		want, _, _ := NewVocabulary(freq, nil).Closest("महिल")
		if best != want {
			t.Fatalf("iteration %d: best %q != %q", i, best, want)
		}
	}
}
