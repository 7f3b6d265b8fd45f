package parcel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// NullLength marks a null string or byte slice on the wire.
const NullLength int32 = -1

var (
	ErrShortInt      = errors.New("parcel: short int32")
	ErrShortValue    = errors.New("parcel: short value")
	ErrInvalidLength = errors.New("parcel: invalid length")
	ErrInvalidString = errors.New("parcel: string is not valid utf-8")
)

// Writer accumulates big-endian primitives into one payload buffer.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteInt32(1)
		return
	}
	w.WriteInt32(0)
}

func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteNullString writes the null marker where a string is expected.
func (w *Writer) WriteNullString() {
	w.WriteInt32(NullLength)
}

func (w *Writer) WriteBytes(b []byte) {
	if b == nil {
		w.WriteInt32(NullLength)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteInt32s writes a count followed by each element.
func (w *Writer) WriteInt32s(values []int32) {
	w.WriteInt32(int32(len(values)))
	for _, v := range values {
		w.WriteInt32(v)
	}
}

// WriteStrings writes a count followed by each element.
func (w *Writer) WriteStrings(values []string) {
	w.WriteInt32(int32(len(values)))
	for _, v := range values {
		w.WriteString(v)
	}
}

// PutInt32At overwrites four bytes already written at offset.
func (w *Writer) PutInt32At(offset int, v int32) error {
	if offset < 0 || offset+4 > len(w.buf) {
		return fmt.Errorf("parcel: offset %d out of range (len=%d)", offset, len(w.buf))
	}
	binary.BigEndian.PutUint32(w.buf[offset:offset+4], uint32(v))
	return nil
}

// Bytes returns the encoded payload. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset truncates the buffer and keeps its capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Reader consumes primitives written by Writer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining reports how many bytes have not been consumed.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte {
	return r.buf[r.off:]
}

func (r *Reader) ReadInt32() (int32, error) {
	if r.Remaining() < 4 {
		return 0, ErrShortInt
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.off : r.off+4]))
	r.off += 4
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadString returns the next string; a null string reads as "" with ok=false.
func (r *Reader) ReadString() (s string, ok bool, err error) {
	b, err := r.readSized()
	if err != nil {
		return "", false, err
	}
	if b == nil {
		return "", false, nil
	}
	if !utf8.Valid(b) {
		return "", false, ErrInvalidString
	}
	return string(b), true, nil
}

// ReadBytes returns a copy of the next length-prefixed byte slice, nil when null.
func (r *Reader) ReadBytes() ([]byte, error) {
	b, err := r.readSized()
	if err != nil || b == nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *Reader) ReadInt32s() ([]int32, error) {
	n, err := r.readCount(4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		if out[i], err = r.ReadInt32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) ReadStrings() ([]string, error) {
	n, err := r.readCount(4)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], _, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) readSized() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == NullLength {
		return nil, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	if r.Remaining() < int(n) {
		return nil, ErrShortValue
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

// readCount reads an element count and rejects counts that cannot fit in the
// remaining bytes given the minimum encoded element size.
func (r *Reader) readCount(minElem int) (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: count %d", ErrInvalidLength, n)
	}
	if int(n)*minElem > r.Remaining() {
		return 0, ErrShortValue
	}
	return int(n), nil
}
