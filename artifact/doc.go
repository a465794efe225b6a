// Package artifact resolves the binary module the loader instantiates.
//
// The harness treats artifact production as an external collaborator: it
// only needs an addressable source it can fetch bytes from. FileSource
// covers a local build output; HTTPSource covers a dev server.
package artifact
