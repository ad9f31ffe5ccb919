// Binary shard encoding. This is deliberately not reflection based: sections
// are raw little-endian float64 bytes so that uncompressed shards can be
// consumed zero-copy from an mmap'd file.
package shard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unsafe"
)

// float64Bytes views a float64 slice as raw bytes without copying.
// Safe on little-endian targets; the format is defined as little-endian.
func float64Bytes(v []float64) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*8)
}

// readFloat64s copies count little-endian float64 values out of data.
func readFloat64s(data []byte, count int) ([]float64, error) {
	if len(data) < count*8 {
		return nil, fmt.Errorf("%w: need %d bytes for %d float64s, have %d", ErrTruncated, count*8, count, len(data))
	}
	// Copy through an aligned destination; the source buffer may not be
	// 8-byte aligned (e.g. a view into an mmap'd file at a section offset).
	out := make([]float64, count)
	if count > 0 {
		copy(float64Bytes(out), data[:count*8])
	}
	return out, nil
}

// encodeIDs writes the id section: count, then uvarint length-prefixed strings.
func encodeIDs(ids []string) []byte {
	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(scratch[:], uint64(len(ids)))
	buf.Write(scratch[:n])
	for _, id := range ids {
		n = binary.PutUvarint(scratch[:], uint64(len(id)))
		buf.Write(scratch[:n])
		buf.WriteString(id)
	}
	return buf.Bytes()
}

func decodeIDs(data []byte) ([]string, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad id count", ErrCorrupted)
	}
	data = data[n:]

	ids := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		l, n := binary.Uvarint(data)
		if n <= 0 || uint64(len(data)-n) < l {
			return nil, fmt.Errorf("%w: bad id length at %d", ErrCorrupted, i)
		}
		ids = append(ids, string(data[n:n+int(l)]))
		data = data[n+int(l):]
	}
	return ids, nil
}

// encodeShard serializes a block into the complete shard file contents and
// returns the header describing them.
func encodeShard(b *Block, featureWidth, tasks int, compression Compression) ([]byte, *FileHeader, error) {
	if err := b.Validate(featureWidth, tasks); err != nil {
		return nil, nil, err
	}

	section := func(v []float64) ([]byte, error) {
		raw := float64Bytes(v)
		if compression == CompressionNone {
			return raw, nil
		}
		return compressSection(raw, compression)
	}

	xSec, err := section(b.X)
	if err != nil {
		return nil, nil, err
	}
	ySec, err := section(b.Y)
	if err != nil {
		return nil, nil, err
	}
	wSec, err := section(b.W)
	if err != nil {
		return nil, nil, err
	}
	idSec := encodeIDs(b.IDs)

	header := FileHeader{
		Magic:        FormatMagic,
		Version:      FormatVersion,
		Compression:  uint8(compression),
		Rows:         uint64(b.Rows),
		FeatureWidth: uint32(featureWidth),
		Tasks:        uint32(tasks),
		YOffset:      uint64(HeaderSize + len(xSec)),
		WOffset:      uint64(HeaderSize + len(xSec) + len(ySec)),
		IDOffset:     uint64(HeaderSize + len(xSec) + len(ySec) + len(wSec)),
	}

	payload := make([]byte, 0, len(xSec)+len(ySec)+len(wSec)+len(idSec))
	payload = append(payload, xSec...)
	payload = append(payload, ySec...)
	payload = append(payload, wSec...)
	payload = append(payload, idSec...)
	header.Checksum = crc32.ChecksumIEEE(payload)

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(payload))
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		return nil, nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), &header, nil
}

// decodeShard parses full shard file contents into a block.
func decodeShard(data []byte) (*Block, *FileHeader, error) {
	if len(data) < HeaderSize {
		return nil, nil, ErrTruncated
	}

	var header FileHeader
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, nil, err
	}
	if uint64(len(data)) < header.IDOffset {
		return nil, nil, ErrTruncated
	}
	if got := crc32.ChecksumIEEE(data[HeaderSize:]); got != header.Checksum {
		return nil, nil, fmt.Errorf("%w: crc 0x%08x, want 0x%08x", ErrCorrupted, got, header.Checksum)
	}

	compression := Compression(header.Compression)
	rows := int(header.Rows)
	width := int(header.FeatureWidth)
	tasks := int(header.Tasks)

	section := func(start, end uint64, count int) ([]float64, error) {
		raw := data[start:end]
		if compression != CompressionNone {
			var err error
			raw, err = decompressSection(raw, compression)
			if err != nil {
				return nil, err
			}
		}
		return readFloat64s(raw, count)
	}

	x, err := section(HeaderSize, header.YOffset, rows*width)
	if err != nil {
		return nil, nil, err
	}
	y, err := section(header.YOffset, header.WOffset, rows*tasks)
	if err != nil {
		return nil, nil, err
	}
	w, err := section(header.WOffset, header.IDOffset, rows*tasks)
	if err != nil {
		return nil, nil, err
	}
	ids, err := decodeIDs(data[header.IDOffset:])
	if err != nil {
		return nil, nil, err
	}
	if len(ids) != rows {
		return nil, nil, fmt.Errorf("%w: %d ids for %d rows", ErrCorrupted, len(ids), rows)
	}

	return &Block{X: x, Y: y, W: w, IDs: ids, Rows: rows}, &header, nil
}
