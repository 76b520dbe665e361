// Package indexstore persists TF-IDF indexes in a checksummed binary format and caches
// them at a fixed path.
package indexstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/hyperjump/titlenorm/internal/sparse"
	"github.com/hyperjump/titlenorm/internal/tfidf"
)

// File layout, all integers little-endian:
//
//	magic "TFIX" | version u32 | fingerprint [32]byte | docs u64
//	terms u64 | per term: len u32, bytes, doc freq u64
//	rows u64 | cols u64 | nnz u64 | indptr (rows+1)*u64 | indices nnz*u64 | values nnz*f64
//	crc32 (IEEE) of everything before it
const (
	Magic         = "TFIX"
	FormatVersion uint32 = 1

	headerSize = 4 + 4 + sha256.Size
	footerSize = 4
)

// ErrCorruptIndex is returned for a persisted index that cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt index")

// Fingerprint identifies the corpus and normalizer an index was built from.
func Fingerprint(signature string, corpus []string) [32]byte {
	h := sha256.New()
	var n [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	h.Write([]byte(Magic))
	binary.LittleEndian.PutUint32(n[:4], FormatVersion)
	h.Write(n[:4])
	writeString(signature)
	binary.LittleEndian.PutUint64(n[:], uint64(len(corpus)))
	h.Write(n[:])
	for _, doc := range corpus {
		writeString(doc)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Encode serializes idx. Equal indexes encode to equal bytes.
func Encode(idx *tfidf.Index) ([]byte, error) {
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	m := idx.Matrix
	var buf bytes.Buffer
	buf.Grow(headerSize + 8*(6+m.Rows+2*m.NNZ()) + footerSize)
	buf.WriteString(Magic)
	putU32(&buf, FormatVersion)
	buf.Write(idx.Fingerprint[:])
	putU64(&buf, uint64(idx.NumDocs))

	putU64(&buf, uint64(idx.Vocab.Len()))
	for i := 0; i < idx.Vocab.Len(); i++ {
		term := idx.Vocab.Term(i)
		putU32(&buf, uint32(len(term)))
		buf.WriteString(term)
		putU64(&buf, uint64(idx.DocFreq[i]))
	}

	putU64(&buf, uint64(m.Rows))
	putU64(&buf, uint64(m.Cols))
	putU64(&buf, uint64(m.NNZ()))
	for _, p := range m.IndPtr {
		putU64(&buf, uint64(p))
	}
	for _, c := range m.Indices {
		putU64(&buf, uint64(c))
	}
	for _, v := range m.Data {
		putU64(&buf, math.Float64bits(v))
	}
	putU32(&buf, crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes(), nil
}

// Decode parses data produced by Encode. Every failure wraps ErrCorruptIndex.
func Decode(data []byte) (*tfidf.Index, error) {
	idx, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return idx, nil
}

func decode(data []byte) (*tfidf.Index, error) {
	if len(data) < headerSize+footerSize {
		return nil, fmt.Errorf("file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != Magic {
		return nil, fmt.Errorf("bad magic %q", data[:4])
	}
	body, footer := data[:len(data)-footerSize], data[len(data)-footerSize:]
	if want, got := binary.LittleEndian.Uint32(footer), crc32.ChecksumIEEE(body); want != got {
		return nil, fmt.Errorf("checksum mismatch: stored %08x, computed %08x", want, got)
	}

	r := &reader{buf: body, off: 4}
	if v := r.u32(); v != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", v)
	}
	idx := &tfidf.Index{}
	copy(idx.Fingerprint[:], r.next(sha256.Size))
	idx.NumDocs = r.size()

	nterms := r.count(4 + 8)
	terms := make([]string, nterms)
	idx.DocFreq = make(tfidf.DocFreq, nterms)
	for i := 0; i < nterms; i++ {
		terms[i] = string(r.next(int(r.u32())))
		idx.DocFreq[i] = r.size()
	}

	m := &sparse.CSR{Rows: r.size(), Cols: r.size()}
	nnz := r.size()
	m.IndPtr = r.ints(m.Rows + 1)
	m.Indices = r.ints(nnz)
	m.Data = make([]float64, 0, nnz)
	for _, bits := range r.u64s(nnz) {
		m.Data = append(m.Data, math.Float64frombits(bits))
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(body) {
		return nil, fmt.Errorf("%d trailing bytes", len(body)-r.off)
	}

	vocab, err := tfidf.NewVocabulary(terms)
	if err != nil {
		return nil, err
	}
	idx.Vocab = vocab
	idx.Matrix = m
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// reader decodes fixed-width fields from a byte slice, latching the first error.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf)-r.off {
		r.err = fmt.Errorf("truncated at offset %d: need %d bytes", r.off, n)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// size reads a u64 that must fit in a non-negative int.
func (r *reader) size() int {
	v := r.u64()
	if v > math.MaxInt32 && r.err == nil {
		r.err = fmt.Errorf("value %d out of range at offset %d", v, r.off-8)
		return 0
	}
	return int(v)
}

// count reads an element count and checks that the remaining input could hold that many
// elements of at least minSize bytes, so corrupt counts cannot force huge allocations.
func (r *reader) count(minSize int) int {
	n := r.size()
	if r.err == nil && n > (len(r.buf)-r.off)/minSize {
		r.err = fmt.Errorf("count %d exceeds remaining input", n)
		return 0
	}
	return n
}

func (r *reader) u64s(n int) []uint64 {
	if r.err == nil && (n < 0 || n > (len(r.buf)-r.off)/8) {
		r.err = fmt.Errorf("truncated at offset %d: need %d values", r.off, n)
	}
	if r.err != nil {
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.u64()
	}
	return out
}

func (r *reader) ints(n int) []int {
	vals := r.u64s(n)
	out := make([]int, len(vals))
	for i, v := range vals {
		if v > math.MaxInt32 {
			if r.err == nil {
				r.err = fmt.Errorf("index %d out of range", v)
			}
			return nil
		}
		out[i] = int(v)
	}
	return out
}
