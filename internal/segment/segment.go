package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/model"
)

const (
	// Magic identifies a segment file.
	Magic = "LSMVSEG1"
	// Version is the current format version.
	Version uint16 = 1
	// HeaderSize is the fixed header length.
	HeaderSize = 40
	// FooterSize is the checksum length.
	FooterSize = 8

	// FlagCompacted marks compaction output.
	FlagCompacted uint8 = 1 << 0
)

var (
	// ErrCorrupt is returned when a segment fails validation.
	ErrCorrupt = errors.New("segment: corrupt")
	// ErrUnsortedInput is returned by Encode for records not strictly ascending by id.
	ErrUnsortedInput = errors.New("segment: records not sorted by id")
)

// Header is the fixed-size segment prologue.
type Header struct {
	Version     uint16
	Compression Compression
	Flags       uint8
	Seq         uint64
	Count       uint64
	BodyLen     uint64
}

func (h Header) encode(dst []byte) {
	copy(dst[0:8], Magic)
	binary.LittleEndian.PutUint16(dst[8:], h.Version)
	dst[10] = uint8(h.Compression)
	dst[11] = h.Flags
	binary.LittleEndian.PutUint32(dst[12:], 0)
	binary.LittleEndian.PutUint64(dst[16:], h.Seq)
	binary.LittleEndian.PutUint64(dst[24:], h.Count)
	binary.LittleEndian.PutUint64(dst[32:], h.BodyLen)
}

func decodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupt, len(src))
	}
	if string(src[0:8]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(src[8:]),
		Compression: Compression(src[10]),
		Flags:       src[11],
		Seq:         binary.LittleEndian.Uint64(src[16:]),
		Count:       binary.LittleEndian.Uint64(src[24:]),
		BodyLen:     binary.LittleEndian.Uint64(src[32:]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	return h, nil
}

// Segment is an immutable, id-sorted array of records.
type Segment struct {
	Seq       uint64
	Compacted bool
	Records   []model.Record
}

// Len returns the number of records.
func (s *Segment) Len() int { return len(s.Records) }

// MinID returns the smallest id, or "" for an empty segment.
func (s *Segment) MinID() string {
	if len(s.Records) == 0 {
		return ""
	}
	return s.Records[0].ID
}

// MaxID returns the largest id, or "" for an empty segment.
func (s *Segment) MaxID() string {
	if len(s.Records) == 0 {
		return ""
	}
	return s.Records[len(s.Records)-1].ID
}

// Find binary-searches for id.
func (s *Segment) Find(id string) (model.Record, bool) {
	i, ok := slices.BinarySearchFunc(s.Records, id, func(r model.Record, id string) int {
		return strings.Compare(r.ID, id)
	})
	if !ok {
		return model.Record{}, false
	}
	return s.Records[i], true
}

// FileName returns the file name for a segment.
func FileName(seq uint64, compacted bool) string {
	if compacted {
		return fmt.Sprintf("segment-%06d.compacted.sst", seq)
	}
	return fmt.Sprintf("segment-%06d.sst", seq)
}

// ParseFileName extracts the sequence number and compaction marker from a
// segment file name. ok is false for names that are not segments.
func ParseFileName(name string) (seq uint64, compacted bool, ok bool) {
	rest, found := strings.CutPrefix(name, "segment-")
	if !found {
		return 0, false, false
	}
	rest, found = strings.CutSuffix(rest, ".sst")
	if !found {
		return 0, false, false
	}
	if r, c := strings.CutSuffix(rest, ".compacted"); c {
		rest, compacted = r, true
	}
	if len(rest) < 6 {
		return 0, false, false
	}
	seq, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return seq, compacted, true
}

// Encode serializes seg. Records must be strictly ascending by id.
func Encode(seg *Segment, c Compression) ([]byte, error) {
	for i := 1; i < len(seg.Records); i++ {
		if seg.Records[i-1].ID >= seg.Records[i].ID {
			return nil, fmt.Errorf("%w: %q before %q", ErrUnsortedInput, seg.Records[i-1].ID, seg.Records[i].ID)
		}
	}

	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	var raw bytes.Buffer
	enc.Reset(&raw)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(seg.Records); err != nil {
		return nil, fmt.Errorf("segment: encode records: %w", err)
	}

	body, err := compressBlock(raw.Bytes(), c)
	if err != nil {
		return nil, fmt.Errorf("segment: compress: %w", err)
	}

	h := Header{
		Version:     Version,
		Compression: c,
		Seq:         seg.Seq,
		Count:       uint64(len(seg.Records)),
		BodyLen:     uint64(len(body)),
	}
	if seg.Compacted {
		h.Flags |= FlagCompacted
	}

	out := make([]byte, HeaderSize+len(body)+FooterSize)
	h.encode(out[:HeaderSize])
	copy(out[HeaderSize:], body)
	sum := xxhash.Sum64(out[:HeaderSize+len(body)])
	binary.LittleEndian.PutUint64(out[HeaderSize+len(body):], sum)
	return out, nil
}

// Decode parses and validates a serialized segment.
func Decode(data []byte) (*Segment, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	end := uint64(HeaderSize) + h.BodyLen
	if uint64(len(data)) != end+FooterSize {
		return nil, fmt.Errorf("%w: length %d does not match header", ErrCorrupt, len(data))
	}
	want := binary.LittleEndian.Uint64(data[end:])
	if got := xxhash.Sum64(data[:end]); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	raw, err := decompressBlock(data[HeaderSize:end], h.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)

	var records []model.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode records: %w", ErrCorrupt, err)
	}
	if uint64(len(records)) != h.Count {
		return nil, fmt.Errorf("%w: %d records, header says %d", ErrCorrupt, len(records), h.Count)
	}
	for i := range records {
		if i > 0 && records[i-1].ID >= records[i].ID {
			return nil, fmt.Errorf("%w: records out of order at %d", ErrCorrupt, i)
		}
		records[i].Metadata = normalizeMetadata(records[i].Metadata)
	}

	return &Segment{
		Seq:       h.Seq,
		Compacted: h.Flags&FlagCompacted != 0,
		Records:   records,
	}, nil
}

// Write encodes seg into dir under its file name, via a synced temporary
// file and rename. It returns the final path and the file size.
func Write(fsys fs.FileSystem, dir string, seg *Segment, c Compression) (string, int64, error) {
	data, err := Encode(seg, c)
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, FileName(seg.Seq, seg.Compacted))
	if err := fs.WriteFileAtomic(fsys, path, data, 0644); err != nil {
		return "", 0, err
	}
	return path, int64(len(data)), nil
}

// Read loads and decodes the segment at path.
func Read(fsys fs.FileSystem, path string) (*Segment, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	seg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return seg, nil
}
