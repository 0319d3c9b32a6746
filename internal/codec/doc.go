// Package codec implements the legacy strm back-reference bitstream.
//
// A stream is a sequence of records. Each record starts with a flagged
// varint. A clear flag introduces a literal run: the value is the number of
// bytes copied verbatim from the stream. A set flag introduces a
// back-reference: the value plus three is the copy length, and a plain varint
// distance follows. The copy source may overlap the bytes being written, so a
// distance shorter than the length repeats the most recent output.
//
// The stream carries no length prefix or terminator. Decoders need the stored
// and raw lengths from the enclosing container header.
package codec
