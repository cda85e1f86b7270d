// Package chunk provides backing pool policies for fixed-size chunks.
//
// A policy hands out raw chunks sized exactly to one element type and
// tracks which of them are allocated. It knows nothing about object
// lifecycles: construction, destruction and ownership errors are handled
// by the tlspool package on top of it.
//
// The package implements:
//   - FreeList: a free list whose blocks double in size, with
//     contiguous (ordered) allocation and purge of fully free blocks
//
// Blocks are typed memory created through reflection, so pointers stored
// inside pooled objects stay visible to the garbage collector.
//
// Policies are not safe for concurrent use. Each instance is owned by
// exactly one thread.
package chunk
