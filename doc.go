// Package mediadex provides an embedded media identity and catalog matching
// engine.
//
// The engine keeps an append-only vector index whose rows are bound to media
// identities through canonical vector hashing: embeddings that differ only by
// floating-point noise resolve to the same row, so re-ingesting known content
// is idempotent. On top of the index it layers a search resolver that turns
// raw vector hits into deduplicated media results, and a catalog matcher that
// reconciles trusted metadata records with untrusted archive candidates.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	engine, err := mediadex.New(embedder, metadataSource, archiveSource,
//	    func(o *mediadex.Options) {
//	        o.Dimension = 384
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	rowID, err := engine.Ingest(ctx, vector, "media-42")
//
//	results, err := engine.Search(ctx, "grainy zombie movie", 10)
//
//	resp, err := engine.Match(ctx, "night of the living dead")
//	for _, m := range resp.Matches {
//	    fmt.Println(m.MatchKey, m.Best.Identifier)
//	}
//
// Storage is pluggable: the default in-memory vector log and identity map can
// be swapped for the durable file log (vectorlog.File) and sqlite map
// (idmap.SQLite) through Options.
package mediadex
