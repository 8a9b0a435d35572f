package norm

import (
	"reflect"
	"testing"
)

func TestRoman(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and trim", "  Mahila  ", "mahila"},
		{"strip punctuation", "yojana!?", "yojana"},
		{"collapse vowel runs", "karoonga", "karonga"},
		{"v to w", "vikas", "wikas"},
		{"yojna variant folds", "yojna", "yojana"},
		{"yojnaa variant folds", "yojnaa", "yojana"},
		{"multiword collapses spaces", "pradhan   mantri", "pradhan mantri"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Roman(tt.in); got != tt.want {
				t.Errorf("Roman(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRomanConvergesSpellingVariants(t *testing.T) {
	// Distinct user spellings of the same word must fold to one key.
	variants := []string{"yojana", "yojna", "yojnaa"}
	want := Roman(variants[0])
	for _, v := range variants[1:] {
		if got := Roman(v); got != want {
			t.Errorf("Roman(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestDevanagari(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace collapse", "महिला   योजना", "महिला योजना"},
		{"zero width joiner removed", "महि‍ला", "महिला"},
		{"zero width space removed", "महि​ला", "महिला"},
		{"byte order mark removed", "\ufeff" + "योजना", "योजना"},
		{"trim", "  योजना ", "योजना"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Devanagari(tt.in); got != tt.want {
				t.Errorf("Devanagari(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mahila,", "mahila"},
		{"(yojana)", "yojana"},
		{"योजना!", "योजना"},
		{"--", ""},
		{"a1b2", "a1b2"},
	}
	for _, tt := range tests {
		if got := Token(tt.in); got != tt.want {
			t.Errorf("Token(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"mixed scripts", "mahila योजना 2024", []string{"mahila", "योजना", "2024"}},
		{"drops single runes", "a b cd", []string{"cd"}},
		{"punctuation splits", "pradhan-mantri,yojana", []string{"pradhan", "mantri", "yojana"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
