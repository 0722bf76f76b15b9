// Package queue persists subtitle jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// A Job row is the checkpoint record for one pipeline run: the options it was
// submitted with, the status of the current stage, and the output of every
// stage that has completed (extracted audio reference, recognized segments,
// translation results, synchronized subtitle file, muxed video). The Store
// claims jobs atomically for workers, tracks heartbeats so crashed stages can
// be rolled back to their previous checkpoint, and records the structured
// error and warning lists reported to users.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive; terminal jobs are purged after the retention window.
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
