// Package lifecycle manages the load / reload / dispose cycle of a binary
// module.
//
// A Manager is constructed once per process with a Factory (the
// promise-returning loader) and the host's HotReload capability. Load
// starts the asynchronous instantiation of a generation; Acquire suspends
// until the pending load settles; Release disposes the current handle
// exactly once. Reload, registered as the pre-replacement hook, chains the
// two: disposal of the outgoing generation is fully awaited before the
// replacement's load begins.
//
// Overlapping reload notifications are queued and serialized rather than
// racing: a second reload arriving while the first disposal is still
// pending waits for it, and a second release of the same generation
// coalesces onto the in-flight disposal.
package lifecycle
