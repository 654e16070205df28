package stream

import (
	"io"
)

// TeeReadCloser hands every byte the caller reads to an archive pipe as well.
// A failing archive side is detached; it never interrupts the caller's read.
type TeeReadCloser struct {
	body     io.ReadCloser
	pw       *io.PipeWriter
	detached bool
}

// TeeBody splits an io.ReadCloser into two:
//   - the returned TeeReadCloser, which the session reads and parses
//   - archive, drained by a background consumer (JetStream archive)
//
// The archive side sees EOF, or the body's read error, once the body ends or
// the caller closes it.
func TeeBody(body io.ReadCloser) (*TeeReadCloser, *io.PipeReader) {
	pr, pw := io.Pipe()
	return &TeeReadCloser{body: body, pw: pw}, pr
}

func (t *TeeReadCloser) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	if n > 0 && !t.detached {
		if _, werr := t.pw.Write(p[:n]); werr != nil {
			t.detached = true
		}
	}
	if err != nil {
		t.pw.CloseWithError(err)
	}
	return n, err
}

func (t *TeeReadCloser) Close() error {
	t.pw.Close()
	return t.body.Close()
}
