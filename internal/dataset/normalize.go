package dataset

import "sort"

// Normalize derives Year and Genres for each record. It returns a new slice; the
// input records and their source text fields are not modified.
func Normalize(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		r.Year = ExtractYear(r.Aired)
		r.Genres = SplitGenres(r.GenresRaw)
		out[i] = r
	}
	return out
}

// Vocabulary returns the distinct labels of a field across records, sorted.
func Vocabulary(records []Record, f LabelField) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range records {
		for _, l := range f.Labels(r) {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
