// Package ftdc records flight telemetry in a compact, append only binary format and reads it
// back.
//
// Every tick a set of named statsers is sampled. Each statser returns a struct whose numeric
// fields (bools, integers and floats, including those of nested structs and arrays) become
// metrics named "<statser>.<field>[.<subfield>...]". Consecutive samples mostly repeat, so only
// values that changed since the previous sample are written.
//
// A file is a sequence of documents:
//
//	file     = document*
//	document = schema | sample
//
//	schema   = 0x01, JSON array of metric names, '\n'
//	sample   = diff bits, int64 time (ns since epoch), float32 per changed metric
//
// The diff bits hold one bit per metric of the latest schema, LSB first, shifted by one so
// that bit 0 of the first byte is always 0. That bit is what tells a sample from a schema. The
// first sample after a schema diffs against all zeroes. All numbers are big endian and values
// are stored as float32, which is lossy for large integers.
//
// For example a controller statser "geom" and a motor statser "motors" produce the schema
//
//	0x01 ["geom.Psi","geom.ErrDPitch","motors.M1","motors.M2"]\n
//
// and a sample where only Psi and M2 moved is
//
//	0b00010010 <time> <Psi> <M2>
package ftdc
