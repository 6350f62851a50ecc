// Package classify scores table columns by how likely they are to contain
// URLs. The result is advisory: the caller presents the ranked list and the
// pipeline runs against whichever column the user ultimately picks.
package classify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/qrsheet/qrsheet/internal/tabular"
)

// SampleSize caps how many non-empty values are inspected per column so
// classification stays cheap on large tables.
const SampleSize = 50

// DefaultScheme is prefixed to URL content that carries no scheme of its
// own, both in the batch pipeline and the single-URL path.
const DefaultScheme = "https://"

// Pre-compiled URL-shape patterns. These are syntactic heuristics, not RFC
// validation: an explicit scheme followed by a host, or a bare domain with
// at least one dot and a plausible TLD.
var (
	schemePattern = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

	schemeURLPattern = regexp.MustCompile(`(?i)^(?:https?|ftp)://` +
		`(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}|localhost|\d{1,3}(?:\.\d{1,3}){3})` +
		`(?::\d+)?(?:[/?#]\S*)?$`)

	bareDomainPattern = regexp.MustCompile(`(?i)^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}` +
		`(?::\d+)?(?:[/?#]\S*)?$`)
)

// ColumnScore is one column's URL likelihood.
type ColumnScore struct {
	// Column is the column name.
	Column string `json:"column"`

	// Confidence is the fraction of sampled values that look like URLs,
	// in [0,1]. Columns with no non-empty values score 0.
	Confidence float64 `json:"confidence"`

	// Reason describes what matched, e.g. "14/20 sampled values have a
	// URL scheme". Empty when nothing matched.
	Reason string `json:"reason,omitempty"`
}

// Classify scores every column of the table, best first. Ties are broken by
// column position so earlier columns win. It never fails: missing or
// unparseable cells simply do not match.
func Classify(t *tabular.Table) []ColumnScore {
	scores := make([]ColumnScore, 0, len(t.Columns))

	for _, col := range t.Columns {
		scores = append(scores, scoreColumn(t, col))
	}

	// Stable sort keeps column order for equal confidence.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	return scores
}

// Suggest returns the name of the best-scoring column with nonzero
// confidence, or "" when no column looks like it holds URLs.
func Suggest(t *tabular.Table) string {
	scores := Classify(t)
	if len(scores) == 0 || scores[0].Confidence == 0 {
		return ""
	}
	return scores[0].Column
}

func scoreColumn(t *tabular.Table, col string) ColumnScore {
	sampled, withScheme, bare := 0, 0, 0

	for i := range t.Rows {
		if sampled >= SampleSize {
			break
		}
		v := t.Cell(i, col)
		if v == "" {
			continue
		}
		sampled++
		switch {
		case schemeURLPattern.MatchString(v):
			withScheme++
		case bareDomainPattern.MatchString(v):
			bare++
		}
	}

	score := ColumnScore{Column: col}
	if sampled == 0 {
		return score
	}

	matched := withScheme + bare
	score.Confidence = float64(matched) / float64(sampled)
	if matched == 0 {
		return score
	}

	if withScheme >= bare {
		score.Reason = fmt.Sprintf("%d/%d sampled values have a URL scheme", withScheme, sampled)
	} else {
		score.Reason = fmt.Sprintf("%d/%d sampled values look like bare domains", bare, sampled)
	}
	return score
}

// LooksLikeURL reports whether a single value matches either URL shape.
func LooksLikeURL(s string) bool {
	return schemeURLPattern.MatchString(s) || bareDomainPattern.MatchString(s)
}

// EnsureScheme prefixes DefaultScheme when the value has no scheme of its
// own. The value itself is otherwise left untouched; semantic URL
// validation is out of scope.
func EnsureScheme(s string) string {
	if s == "" || schemePattern.MatchString(s) {
		return s
	}
	return DefaultScheme + s
}
