// Package catalog matches trusted canonical metadata records against raw,
// untrusted archive candidates.
package catalog

// Candidate is a raw search hit from an archive provider. Optional numeric
// fields are pointers; the year stays string-sourced because archives report
// partial or malformed dates.
type Candidate struct {
	Identifier    string
	Title         string
	Year          YearField
	Downloads     *int
	ReviewCount   *int
	AverageRating *float64
}

// CanonicalRecord is a trusted item from a metadata provider.
type CanonicalRecord struct {
	CanonicalID string
	Title       string
	Year        int
	Overview    string
	Extra       map[string]string
}

// MatchCandidate is a Candidate annotated with its computed score.
type MatchCandidate struct {
	Candidate
	Score float64
}

// Match binds a canonical record to its ranked archive candidates. It is
// immutable once constructed: Candidates is sorted descending by score, is
// never empty, and Best is its head.
type Match struct {
	MatchKey    string
	CanonicalID string
	Record      CanonicalRecord
	Best        MatchCandidate
	Candidates  []MatchCandidate
}

// Response aggregates the matches of one matcher run. Total equals
// len(Matches); Excluded counts canonical records that matched no candidate
// group.
type Response struct {
	Matches  []Match
	Total    int
	Excluded int
}
