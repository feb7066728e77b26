// Package segment encodes and decodes immutable segment files.
//
// A segment holds a full, id-sorted array of records captured at flush or
// compaction time. Once written it is never modified; compaction replaces a
// set of segments by writing a new one and deleting the inputs.
//
// # File Layout
//
//	+--------------------+  0
//	| magic "LSMVSEG1"   |  8 bytes
//	| version            |  u16
//	| compression        |  u8
//	| flags              |  u8 (bit0 = compacted)
//	| reserved           |  u32
//	| sequence           |  u64
//	| record count       |  u64
//	| body length        |  u64
//	+--------------------+  40
//	| body               |  block header + (compressed) msgpack records
//	+--------------------+
//	| xxhash64           |  over header and body
//	+--------------------+
//
// All integers are little endian.
//
// # File Names
//
// Segments are named segment-<seq>.sst, or segment-<seq>.compacted.sst for
// compaction output, with seq zero-padded to at least six digits.
package segment
