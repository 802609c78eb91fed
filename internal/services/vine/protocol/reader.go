package protocol

// Reader accumulates stream bytes for one direction and yields whole frames.
// Bytes are only ever consumed in frame-sized steps taken from the size table.
type Reader struct {
	side Side
	buf  []byte
}

// NewReader returns a reader for traffic travelling toward side.
func NewReader(side Side) *Reader {
	return &Reader{side: side}
}

// Write appends received bytes. It never fails.
func (r *Reader) Write(p []byte) (int, error) {
	r.buf = append(r.buf, p...)
	return len(p), nil
}

// Next returns the next whole frame. It returns ErrIncomplete when the
// buffered bytes do not yet hold one. A malformed frame leaves the buffer
// untouched; the stream cannot be resynchronized and should be closed.
func (r *Reader) Next() (Message, error) {
	msg, n, err := Decode(r.side, r.buf)
	if err != nil {
		return nil, err
	}
	remaining := copy(r.buf, r.buf[n:])
	r.buf = r.buf[:remaining]
	return msg, nil
}

// Buffered returns the number of unread bytes.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Reset discards any buffered bytes.
func (r *Reader) Reset() {
	r.buf = r.buf[:0]
}
