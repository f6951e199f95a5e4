package audioring

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// ErrBufferFull is returned when a chunk does not fit. Older audio is never dropped.
var ErrBufferFull = errors.New("audioring: buffer full")

type rb_impl struct {
	mu     sync.Mutex
	size   int
	chunks int
	rb     *ringbuffer.RingBuffer
}

func New(size int) Buffer {
	return &rb_impl{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

// Enqueue implements Buffer.
func (r *rb_impl) Enqueue(chunk Chunk) error {
	data, err := chunk.MarshalBinary()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// size prefix + frame
	if len(data)+4 > r.rb.Free() {
		return ErrBufferFull
	}
	var sizeBytes [4]byte
	binary.LittleEndian.PutUint32(sizeBytes[:], uint32(len(data)))
	if _, err := r.rb.Write(sizeBytes[:]); err != nil {
		return err
	}
	if _, err := r.rb.Write(data); err != nil {
		return err
	}
	r.chunks++
	return nil
}

// Drain implements Buffer. It returns the concatenated payload of every chunk in arrival order
// and leaves the buffer empty.
func (r *rb_impl) Drain() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []byte
	for !r.rb.IsEmpty() {
		c, ok := r.dequeue()
		if !ok {
			// a torn frame cannot be recovered
			r.rb.Reset()
			break
		}
		out = append(out, c.Data...)
	}
	r.chunks = 0
	return out
}

func (r *rb_impl) dequeue() (Chunk, bool) {
	var sizeBytes [4]byte
	if n, err := r.rb.Read(sizeBytes[:]); err != nil || n != 4 {
		return Chunk{}, false
	}
	size := int(binary.LittleEndian.Uint32(sizeBytes[:]))
	data := make([]byte, size)
	if n, err := r.rb.Read(data); err != nil || n != size {
		return Chunk{}, false
	}
	var c Chunk
	if err := c.UnmarshalBinary(data); err != nil {
		return Chunk{}, false
	}
	return c, true
}

// Chunks implements Buffer.
func (r *rb_impl) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks
}

// Len implements Buffer. It counts framing bytes too.
func (r *rb_impl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length()
}

// Capacity implements Buffer.
func (r *rb_impl) Capacity() int {
	return r.size
}

// Reset implements Buffer.
func (r *rb_impl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rb.Reset()
	r.chunks = 0
}
