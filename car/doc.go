// Package car reads CARv1 content-addressed container files.
//
// A container begins with a varint-prefixed CBOR header declaring the
// format version and a list of root content identifiers, followed by a
// contiguous sequence of blocks running to end of file. Each block is a
// varint length prefix covering a content identifier plus that block's
// raw data.
//
// [Scan] walks a container once, decoding only the framing: it returns
// the header and an [Index] mapping every content identifier to the
// byte range of its data, without ever loading block payloads. Callers
// read payloads later with positioned reads against the same source.
//
// The package treats containers as untrusted input: every length is
// validated against the file size before it is trusted, and malformed
// framing fails with one of the sentinel errors in errors.go.
package car
