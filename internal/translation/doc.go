// Package translation implements the rate-limited, retrying translation
// client that turns transcript text into the target language.
//
// Translate accepts an ordered slice of Units and always returns one Result
// per Unit in the same order. Identical source strings are sent once. Unique
// strings are grouped into bounded batches, dispatched concurrently through a
// token bucket, retried with exponential backoff and jitter on transient
// failures, and short-circuited by a Breaker after a run of failed batches.
// A unit that cannot be translated comes back with StatusFailed instead of
// failing the whole call; callers decide how to degrade.
//
// The remote endpoint sits behind the Transport interface. BaiduTransport
// speaks the signed form-encoded API; tests inject fakes.
package translation
