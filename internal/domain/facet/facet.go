// Package facet models structured metadata filters applied to both backends.
package facet

// Filter restricts retrieval to articles carrying any of the listed facet
// values. Empty slices mean no restriction on that facet. Values are compared
// against the corpus normalized metadata fields.
type Filter struct {
	Locations    []string `json:"locations,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Contributors []string `json:"contributors,omitempty"`
}

// IsEmpty reports whether the filter restricts nothing.
func (f Filter) IsEmpty() bool {
	return len(f.Locations) == 0 && len(f.Categories) == 0 &&
		len(f.Tags) == 0 && len(f.Contributors) == 0
}

// Merge returns a filter combining the receiver with detected entity filters.
// Values are appended with duplicates removed, caller values first.
func (f Filter) Merge(other Filter) Filter {
	return Filter{
		Locations:    mergeValues(f.Locations, other.Locations),
		Categories:   mergeValues(f.Categories, other.Categories),
		Tags:         mergeValues(f.Tags, other.Tags),
		Contributors: mergeValues(f.Contributors, other.Contributors),
	}
}

func mergeValues(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
