package link

import "io"

type stdioConn struct {
	io.Reader
	io.Writer
}

func (stdioConn) Close() error { return nil }

// StdioConn joins a reader and writer into a connection for terminal use.
// Closing it leaves both streams open.
func StdioConn(r io.Reader, w io.Writer) io.ReadWriteCloser {
	return stdioConn{Reader: r, Writer: w}
}
