// Package plugin loads kernel providers from external artifacts before a
// program is parsed.
//
// Two artifact kinds are supported. WebAssembly modules (.wasm) are
// instantiated under wazero and every exported function with a scalar
// signature becomes a kernel named after the export. Native shared
// objects (.so) are opened with the standard plugin mechanism and may
// export a RegisterKernels function; a library without one is still
// valid, since registration can happen from its initializers.
//
// Loading is fail-fast: the first provider that cannot be loaded aborts
// the run before anything executes.
package plugin
