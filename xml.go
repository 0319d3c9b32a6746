package strm

import "bytes"

// XMLTranscoder converts a textual XML document into its packed binary form.
type XMLTranscoder interface {
	Transcode(doc []byte) ([]byte, error)
}

// XMLTranscoderFunc adapts a function to XMLTranscoder.
type XMLTranscoderFunc func(doc []byte) ([]byte, error)

// Transcode implements XMLTranscoder.
func (f XMLTranscoderFunc) Transcode(doc []byte) ([]byte, error) {
	return f(doc)
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// isXMLDocument reports whether b starts with an XML declaration, allowing a
// UTF-8 byte order mark and leading whitespace.
func isXMLDocument(b []byte) bool {
	b = bytes.TrimPrefix(b, utf8BOM)
	b = bytes.TrimLeft(b, " \t\r\n")
	return bytes.HasPrefix(b, []byte("<?xml"))
}
