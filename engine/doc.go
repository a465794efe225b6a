// Package engine provides the wazero-backed instantiation layer.
//
// An Engine wraps one wazero runtime and instantiates guest modules from
// raw wasm bytes. The resulting Instance satisfies the harness Handle
// contract: Dispose calls the guest's exported "dispose" function (when the
// guest exports one) and then closes the module. Dispose is idempotent.
package engine
