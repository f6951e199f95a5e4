package audioring

import (
	"encoding/binary"
	"errors"
	"time"
)

var errShortChunk = errors.New("audioring: short chunk")

// Chunk is one binary frame received from a client.
type Chunk struct {
	Data      []byte
	Timestamp time.Time
}

// MarshalBinary encodes the chunk as timestamp(8) + dataLen(4) + data.
func (c *Chunk) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+4+len(c.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(c.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(c.Data)))
	copy(buf[12:], c.Data)
	return buf, nil
}

func (c *Chunk) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return errShortChunk
	}
	c.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[0:])))
	n := int(binary.LittleEndian.Uint32(data[8:]))
	if len(data[12:]) < n {
		return errShortChunk
	}
	c.Data = make([]byte, n)
	copy(c.Data, data[12:12+n])
	return nil
}

// Buffer accumulates a client's chunked upload until a turn consumes it.
type Buffer interface {
	Enqueue(chunk Chunk) error
	Drain() []byte
	Chunks() int
	Len() int
	Capacity() int
	Reset()
}
