package serialization

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
)

// Marshaler is implemented by types carrying a generated (or
// hand-written) pack method.
type Marshaler interface {
	PackSerializedBytes(w *Writer)
}

// Unmarshaler is the unpack counterpart of Marshaler.
type Unmarshaler interface {
	UnpackSerializedBytes(r *Reader)
}

// Packable is the full generated method pair.
type Packable interface {
	Marshaler
	Unmarshaler
}

type writerError struct {
	err error
}

func (e writerError) Error() string {
	if e.err == nil {
		return "serialization: write:"
	}

	return "serialization: write: " + e.err.Error()
}

func makeWriterError(format string, args ...interface{}) writerError {
	return writerError{err: fmt.Errorf(format, args...)}
}

// Writer accumulates the little-endian wire encoding of one message.
// All lengths are 32-bit; int and uint travel as 64 bits.
type Writer struct {
	buf []byte
}

func NewWriter(size ...int) *Writer {
	if len(size) > 0 && size[0] > 0 {
		return &Writer{buf: make([]byte, 0, size[0])}
	}

	return &Writer{buf: make([]byte, 0, 128)}
}

func (w *Writer) Uint64(val uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, val)
}

func (w *Writer) Uint32(val uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, val)
}

func (w *Writer) Uint16(val uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, val)
}

func (w *Writer) Uint8(val uint8) {
	w.buf = append(w.buf, val)
}

func (w *Writer) Uint(val uint) {
	w.Uint64(uint64(val))
}

func (w *Writer) Int(val int) {
	w.Uint64(uint64(val))
}

func (w *Writer) Int64(val int64) {
	w.Uint64(uint64(val))
}

func (w *Writer) Int32(val int32) {
	w.Uint32(uint32(val))
}

func (w *Writer) Int16(val int16) {
	w.Uint16(uint16(val))
}

func (w *Writer) Int8(val int8) {
	w.Uint8(uint8(val))
}

func (w *Writer) Byte(val byte) {
	w.buf = append(w.buf, val)
}

func (w *Writer) Bool(b bool) {
	if b {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Float32(val float32) {
	w.Uint32(math.Float32bits(val))
}

func (w *Writer) Float64(val float64) {
	w.Uint64(math.Float64bits(val))
}

func (w *Writer) Complex64(val complex64) {
	w.Float32(real(val))
	w.Float32(imag(val))
}

func (w *Writer) Complex128(val complex128) {
	w.Float64(real(val))
	w.Float64(imag(val))
}

func (w *Writer) String(val string) {
	n := len(val)
	if n > math.MaxInt32 {
		panic(makeWriterError("string length doesn't fit in 4 bytes"))
	}
	w.Uint32(uint32(n))
	if n == 0 {
		return
	}
	w.buf = append(w.buf, val...)
}

// Bytes writes val as one buffered blob. A nil slice travels as the
// length sentinel -1 and unpacks as nil.
func (w *Writer) Bytes(val []byte) {
	if val == nil {
		w.Int32(-1)
		return
	}
	n := len(val)
	if n > math.MaxInt32 {
		panic(makeWriterError("byte slice length doesn't fit in 4 bytes"))
	}
	w.Uint32(uint32(n))
	if n == 0 {
		return
	}
	w.buf = append(w.buf, val...)
}

func (w *Writer) Len(l int) {
	if l < -1 {
		panic(makeWriterError("unable to encode a negative length %d", l))
	}
	if l > math.MaxInt32 {
		panic(makeWriterError("length can't be represented in 4 bytes"))
	}

	w.Int32(int32(l))
}

func (w *Writer) MarshalProto(value proto.Message) {
	bs, err := proto.Marshal(value)
	if err != nil {
		panic(makeWriterError("error encoding proto %T: %v", value, err))
	}
	w.Bytes(bs)
}

// Any writes a registered Packable prefixed with its type key so the
// reader can reconstruct the concrete type.
func (w *Writer) Any(value Packable) {
	w.String(typeKey(value))
	value.PackSerializedBytes(w)
}

const (
	endOfErrors     uint8 = 0
	serializedError uint8 = 1
	emulatedError   uint8 = 2
)

// Error writes err at the end of a reply payload. Registered Packable
// errors round-trip as values; anything else travels as its message.
func (w *Writer) Error(err error) {
	if err != nil {
		if p, ok := err.(Packable); ok && isRegistered(p) {
			w.Uint8(serializedError)
			w.Any(p)
		} else {
			w.Uint8(emulatedError)
			w.String(err.Error())
		}
	}
	w.Uint8(endOfErrors)
}

func (w *Writer) Data() []byte {
	return w.buf
}
