package storage

import (
	"fmt"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragstream/core"
)

const chunkCodecVersion = 1

// MarshalChunk serializes a Chunk to bytes. Metadata is written in key
// order so identical chunks encode identically.
func MarshalChunk(c *core.Chunk) []byte {
	keys := sortedKeys(c.Metadata)

	size := varint.Int.Size(chunkCodecVersion)
	size += ord.String.Size(c.ID) + ord.String.Size(c.DocumentID) + ord.String.Size(c.Content)
	size += varint.Int.Size(c.ChunkIndex)
	size += varint.Int.Size(len(c.Embedding))
	for _, v := range c.Embedding {
		size += raw.Float32.Size(v)
	}
	size += varint.Int.Size(len(keys))
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(c.Metadata[k])
	}

	buf := make([]byte, size)
	n := varint.Int.Marshal(chunkCodecVersion, buf)
	n += ord.String.Marshal(c.ID, buf[n:])
	n += ord.String.Marshal(c.DocumentID, buf[n:])
	n += ord.String.Marshal(c.Content, buf[n:])
	n += varint.Int.Marshal(c.ChunkIndex, buf[n:])
	n += varint.Int.Marshal(len(c.Embedding), buf[n:])
	for _, v := range c.Embedding {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	n += varint.Int.Marshal(len(keys), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(c.Metadata[k], buf[n:])
	}
	return buf[:n]
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	d := &decoder{bs: data}
	if version := d.int(); d.err == nil && version != chunkCodecVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	c := &core.Chunk{}
	c.ID = d.string()
	c.DocumentID = d.string()
	c.Content = d.string()
	c.ChunkIndex = d.int()

	if n := d.length(4); n > 0 {
		c.Embedding = make([]float32, n)
		for i := range c.Embedding {
			c.Embedding[i] = d.float32()
		}
	}
	if n := d.length(2); n > 0 {
		c.Metadata = make(map[string]string, n)
		for range n {
			k := d.string()
			c.Metadata[k] = d.string()
		}
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, d.err)
	}
	return c, nil
}

// decoder reads successive values and keeps the first error.
type decoder struct {
	bs  []byte
	off int
	err error
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(d.bs[d.off:])
	d.off += n
	d.err = err
	return v
}

// length reads a collection length and rejects values that cannot fit in
// the remaining bytes given each element takes at least minElem bytes.
func (d *decoder) length(minElem int) int {
	n := d.int()
	if d.err != nil {
		return 0
	}
	if n < 0 || n*minElem > len(d.bs)-d.off {
		d.err = fmt.Errorf("length %d exceeds remaining %d bytes", n, len(d.bs)-d.off)
		return 0
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
