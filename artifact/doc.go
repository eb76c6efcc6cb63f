// Package artifact stores named documents produced by tools, such as the
// drafts written by the document tools.
//
// Artifacts are grouped by namespace (for example a checkpoint thread id or
// an empty string for "global"). InMemoryStore serves tests and single
// process prototypes; FileStore writes each artifact as a plain file below a
// root directory so demos leave readable output behind.
package artifact
