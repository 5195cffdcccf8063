package gazetteer

import (
	"context"
	"sort"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"sglocations.io/ner/types"
	"sglocations.io/ner/utils"
)

// Options tunes matching. CaseInsensitive folds ASCII letters only, so
// "CAFÉ" does not match "café".
type Options struct {
	CaseInsensitive bool
}

// Ruler tags every whole-word occurrence of a known location name. Among
// overlapping whole-word candidates the leftmost, then longest, wins. A word
// is a run of Unicode letters and digits.
type Ruler struct {
	name     string
	ac       ahocorasick.AhoCorasick
	patterns []string
	labels   []string
}

func NewRuler(name string, patterns []Pattern, opts Options) *Ruler {
	ruler := &Ruler{name: name}

	index := make(map[string]int, len(patterns))
	for _, p := range patterns {
		// first label of a surface form wins
		if _, ok := index[p.Pattern]; ok {
			continue
		}
		index[p.Pattern] = len(ruler.patterns)
		ruler.patterns = append(ruler.patterns, p.Pattern)
		ruler.labels = append(ruler.labels, p.Label)
	}

	if len(ruler.patterns) == 0 {
		return ruler
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: opts.CaseInsensitive,
		MatchKind:            ahocorasick.StandardMatch,
	})
	ruler.ac = builder.Build(ruler.patterns)

	return ruler
}

func (ruler *Ruler) Name() string {
	return ruler.name
}

func (ruler *Ruler) Len() int {
	return len(ruler.patterns)
}

func (ruler *Ruler) Recognize(ctx context.Context, text string) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(text) == 0 || len(ruler.patterns) == 0 {
		return []types.Entity{}, nil
	}

	candidates := ruler.wholeWordMatches(text)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Start() != candidates[j].Start() {
			return candidates[i].Start() < candidates[j].Start()
		}
		if candidates[i].End() != candidates[j].End() {
			return candidates[i].End() > candidates[j].End()
		}
		return candidates[i].Pattern() < candidates[j].Pattern()
	})

	offsets := utils.RuneOffsets(text)
	entities := make(types.Entities, 0, len(candidates))
	covered := 0
	for _, m := range candidates {
		if m.Start() < covered {
			continue
		}
		begin, beginOk := offsets[m.Start()]
		end, endOk := offsets[m.End()]
		if !beginOk || !endOk {
			continue
		}
		entities = append(entities, types.Entity{
			Text:  text[m.Start():m.End()],
			Label: ruler.labels[m.Pattern()],
			Begin: begin,
			End:   end,
		})
		covered = m.End()
	}

	return entities, nil
}

// wholeWordMatches returns every match, overlapping or not, that is not
// glued to a letter or digit on either side.
func (ruler *Ruler) wholeWordMatches(text string) []ahocorasick.Match {
	var matches []ahocorasick.Match
	iter := ruler.ac.IterOverlapping(text)
	for m := iter.Next(); m != nil; m = iter.Next() {
		if isWordRune(lastRune(text[:m.Start()])) || isWordRune(firstRune(text[m.End():])) {
			continue
		}
		matches = append(matches, *m)
	}
	return matches
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// isWordRune is false for utf8.RuneError, which marks either end of the text.
func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsNumber(r))
}
