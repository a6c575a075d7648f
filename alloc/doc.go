// Package alloc provides the allocator strategies the driver selects
// between: the plain heap, a deterministic fixed-size test arena, a
// profiling wrapper, and a leak-checking wrapper.
//
// Allocators back program storage, so their Close-time behavior
// participates in the run's final resource state: the leak-checking
// variant fails Close if any allocation is still outstanding.
package alloc
