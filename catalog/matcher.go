package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

const downloadsScoreDivisor = 10000

// Options contains configuration options for the matcher.
type Options struct {
	// YearTolerance widens year matching to |candidate - record| <= tolerance.
	// Zero keeps the strict exact-year behavior.
	YearTolerance int

	// Normalizer derives the title matching key.
	Normalizer func(title string) string

	// Logger receives diagnostics such as skipped malformed years.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the matcher.
var DefaultOptions = Options{
	YearTolerance: 0,
	Normalizer:    NormalizeTitle,
	Logger:        slog.New(slog.DiscardHandler),
}

// Matcher matches canonical records against archive candidates.
type Matcher struct {
	opts Options
}

// New creates a new matcher.
func New(optFns ...func(o *Options)) *Matcher {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Normalizer == nil {
		opts.Normalizer = NormalizeTitle
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Matcher{opts: opts}
}

// Score computes a candidate's ranking score. Absent fields contribute
// nothing; the year never feeds scoring.
func (m *Matcher) Score(c Candidate) float64 {
	var score float64
	if c.Downloads != nil {
		score += float64(*c.Downloads) / downloadsScoreDivisor
	}
	if c.AverageRating != nil {
		score += *c.AverageRating * 2
	}
	return score
}

// GroupKey identifies a deduplicated candidate group.
type GroupKey struct {
	Title string
	Year  int
}

// compareCandidates orders by score descending, then downloads descending,
// then identifier ascending, so equal-score groups stay deterministic.
func compareCandidates(a, b MatchCandidate) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}

	da, db := 0, 0
	if a.Downloads != nil {
		da = *a.Downloads
	}
	if b.Downloads != nil {
		db = *b.Downloads
	}
	if da != db {
		if da > db {
			return -1
		}
		return 1
	}

	return strings.Compare(a.Identifier, b.Identifier)
}

// Dedupe buckets candidates by (normalized title, year) and sorts each
// bucket descending by score. Candidates without a usable year are dropped:
// they can never match a canonical record, and a malformed year is logged
// rather than silently defaulted.
func (m *Matcher) Dedupe(ctx context.Context, candidates []Candidate) map[GroupKey][]MatchCandidate {
	buckets := make(map[GroupKey][]MatchCandidate)

	for _, c := range candidates {
		switch c.Year.Outcome {
		case YearValue:
		case YearMalformed:
			m.opts.Logger.WarnContext(ctx, "skipping candidate with malformed year",
				slog.String("identifier", c.Identifier),
				slog.String("raw_year", c.Year.Raw),
			)
			continue
		default:
			continue
		}

		key := GroupKey{Title: m.opts.Normalizer(c.Title), Year: c.Year.Value}
		buckets[key] = append(buckets[key], MatchCandidate{Candidate: c, Score: m.Score(c)})
	}

	for key := range buckets {
		slices.SortFunc(buckets[key], compareCandidates)
	}

	return buckets
}

// Match matches each canonical record against the candidate buckets.
//
// A record matches buckets whose normalized title is equal and whose year is
// within YearTolerance. Records with no matching bucket are excluded and
// counted, never surfaced as an error.
func (m *Matcher) Match(ctx context.Context, records []CanonicalRecord, candidates []Candidate) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	buckets := m.Dedupe(ctx, candidates)

	resp := Response{Matches: make([]Match, 0, len(records))}
	for _, record := range records {
		group := m.matchingGroup(buckets, record)
		if len(group) == 0 {
			resp.Excluded++
			m.opts.Logger.DebugContext(ctx, "canonical record has no candidates",
				slog.String("canonical_id", record.CanonicalID),
				slog.String("title", record.Title),
				slog.Int("year", record.Year),
			)
			continue
		}

		resp.Matches = append(resp.Matches, Match{
			CanonicalID: record.CanonicalID,
			Record:      record,
			Best:        group[0],
			Candidates:  group,
		})
	}

	resp.Total = len(resp.Matches)
	return resp, nil
}

// matchingGroup gathers the candidates matching record, merging buckets when
// the tolerance window spans several years.
func (m *Matcher) matchingGroup(buckets map[GroupKey][]MatchCandidate, record CanonicalRecord) []MatchCandidate {
	title := m.opts.Normalizer(record.Title)

	if m.opts.YearTolerance == 0 {
		bucket := buckets[GroupKey{Title: title, Year: record.Year}]
		return slices.Clone(bucket)
	}

	var group []MatchCandidate
	for year := record.Year - m.opts.YearTolerance; year <= record.Year+m.opts.YearTolerance; year++ {
		group = append(group, buckets[GroupKey{Title: title, Year: year}]...)
	}
	slices.SortFunc(group, compareCandidates)
	return group
}
