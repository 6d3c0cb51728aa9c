package serialization

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"

	"google.golang.org/protobuf/proto"
)

type readerError struct {
	err error
}

func (e readerError) Error() string {
	if e.err == nil {
		return "serialization: read:"
	}

	return "serialization: read: " + e.err.Error()
}

func makeReaderError(format string, args ...interface{}) readerError {
	return readerError{err: fmt.Errorf(format, args...)}
}

// Reader consumes a Writer-produced buffer positionally.
type Reader struct {
	buf   []byte
	index int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) check(n int) {
	if len(r.buf[r.index:]) < n {
		panic(makeReaderError("not enough data to deserialize"))
	}
}

func (r *Reader) Uint64() (val uint64) {
	const size = 8
	r.check(size)
	val = binary.LittleEndian.Uint64(r.buf[r.index : r.index+size])
	r.index += size
	return
}

func (r *Reader) Uint32() (val uint32) {
	const size = 4
	r.check(size)
	val = binary.LittleEndian.Uint32(r.buf[r.index : r.index+size])
	r.index += size
	return
}

func (r *Reader) Uint16() (val uint16) {
	const size = 2
	r.check(size)
	val = binary.LittleEndian.Uint16(r.buf[r.index : r.index+size])
	r.index += size
	return
}

func (r *Reader) Uint8() (val uint8) {
	r.check(1)
	val = r.buf[r.index]
	r.index++
	return
}

func (r *Reader) Uint() uint {
	return uint(r.Uint64())
}

func (r *Reader) Int64() int64 {
	return int64(r.Uint64())
}

func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

func (r *Reader) Int8() int8 {
	return int8(r.Uint8())
}

func (r *Reader) Int() int {
	return int(r.Uint64())
}

func (r *Reader) Byte() byte {
	return r.Uint8()
}

func (r *Reader) Bool() bool {
	return r.Uint8() == 1
}

func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

func (r *Reader) Float64() float64 {
	return math.Float64frombits(r.Uint64())
}

func (r *Reader) Complex64() complex64 {
	return complex(r.Float32(), r.Float32())
}

func (r *Reader) Complex128() complex128 {
	return complex(r.Float64(), r.Float64())
}

func (r *Reader) String() (val string) {
	size := int(r.Uint32())
	r.check(size)
	val = string(r.buf[r.index : r.index+size])
	r.index += size
	return
}

func (r *Reader) Bytes() (val []byte) {
	size := r.Uint32()
	if int32(size) == -1 {
		return nil
	}
	r.check(int(size))
	val = make([]byte, size)
	copy(val, r.buf[r.index:r.index+int(size)])
	r.index += int(size)
	return
}

func (r *Reader) Len() int {
	n := int(r.Int32())
	if n < -1 {
		panic(makeReaderError("length can't be smaller than -1"))
	}

	return n
}

func (r *Reader) UnmarshalProto(value proto.Message) {
	if err := proto.Unmarshal(r.Bytes(), value); err != nil {
		panic(makeReaderError("error decoding proto %T: %v", value, err))
	}
}

// Any reconstructs a value written with Writer.Any. The concrete type
// must have been registered with Register.
func (r *Reader) Any() any {
	key := r.String()

	t, ok := lookupType(key)
	if !ok {
		panic(makeReaderError("received value for unregistered type %q", key))
	}

	var ptr reflect.Value
	if t.Kind() == reflect.Pointer {
		ptr = reflect.New(t.Elem())
	} else {
		ptr = reflect.New(t)
	}

	u, ok := ptr.Interface().(Unmarshaler)
	if !ok {
		panic(makeReaderError("received value for non-serializable type %v", t))
	}
	u.UnpackSerializedBytes(r)

	result := ptr
	if t.Kind() != reflect.Pointer {
		result = ptr.Elem()
	}

	return result.Interface()
}

// Error reads the error chain written by Writer.Error.
func (r *Reader) Error() error {
	var list []error
	for {
		tag := r.Uint8()
		if tag == endOfErrors {
			break
		}
		switch tag {
		case serializedError:
			val := r.Any()
			e, ok := val.(error)
			if !ok {
				panic(makeReaderError("received type %T which is not an error", val))
			}
			list = append(list, e)
		case emulatedError:
			list = append(list, errors.New(r.String()))
		default:
			panic(makeReaderError("unknown error tag %d", tag))
		}
	}

	if len(list) == 1 {
		return list[0]
	}

	return errors.Join(list...)
}
