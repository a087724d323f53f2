// Package catalogcache eagerly caches a remote series catalog and its artwork.
//
// A refresh fetches categories, per-category series lists and per-series
// season/episode trees from a catalog.Source, writes them into a versioned
// store.Store and enriches every series with artwork from a
// metadata.Searcher. Hosts read the result through the catalog.Reader
// methods on Engine.
//
// Components:
//   - store.Store: byte cache under a <namespace>:<fingerprint>:g<generation>:
//     prefix. Invalidation bumps the generation; nothing is deleted.
//   - failures.Tracker + retry.Executor: bounded retries with backoff and a
//     short-lived memory of targets that keep failing.
//   - artwork.Resolver: override ids first, then name search.
//
// At most one refresh runs at a time:
//
//	if !engine.TryStartRefresh("manual") {
//	    // already running; not an error
//	}
//	st := engine.Status() // poll progress
package catalogcache
