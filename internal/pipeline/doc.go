// Package pipeline holds the stage handlers the workflow manager drives:
// extraction, recognition, translation, synchronization and muxing.
//
// Each handler reads the checkpoint left on the job by the previous stage and
// records its own before returning. Handlers talk to external tools only
// through the small collaborator interfaces declared here so tests can swap
// in fakes; the production collaborators live in internal/media and
// internal/services/whisperx.
package pipeline
