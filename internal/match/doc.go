// Package match resolves source playlist tracks against a music library.
//
// Resolution runs a [Pattern] of search strategies in order, each asking a [Library] for
// candidates and scoring them with [Similarity] over [Normalize]d metadata. An [Overrides]
// layer can pin a source track to a known library item or skip it entirely. [Engine] resolves a
// single track and [Resolver] resolves a whole playlist, sequentially or with a bounded worker pool.
//
// Scoring uses one 0-100 scale. A candidate passes when its score is strictly greater than the
// engine threshold ([DefaultThreshold] unless configured).
package match
