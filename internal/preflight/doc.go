// Package preflight provides readiness checks for the filesystem paths,
// external tools, and translation endpoint that bisub depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before claiming work. A failed
//     required check pauses processing instead of failing every job.
//   - The CLI "bisub status" command uses the individual checks, including
//     the live endpoint probe CheckTranslation, to display health.
package preflight
