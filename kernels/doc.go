// Package kernels provides the built-in kernel set registered into every
// engine: typed constants, arithmetic, printing, chain construction, and
// the error and cancellation kernels negative tests are written against.
//
// Kernel names are namespaced under "flow.". Plugins extend the set at
// load time through the same registry; see the plugin package.
package kernels
