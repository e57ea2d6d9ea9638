// Package readability defines core types shared across subsystems: the
// extraction result, fetch request/response shapes, and the collaborator
// interfaces consumed by the API layer and the extraction pipeline.
package readability
