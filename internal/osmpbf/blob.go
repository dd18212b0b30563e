package osmpbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ProducerName is the writingprogram value stamped into every header
// block this package emits.
const ProducerName = "rusty-routes-transformer"

const (
	blobHeaderTypeHeader = "OSMHeader"
	blobHeaderTypeData   = "OSMData"
)

// compressionLevel controls whether writeBlob emits a Blob's payload as
// raw bytes (field 1) or zlib_data (field 3) + raw_size (field 2). Zero
// keeps blobs uncompressed, matching every other PBF this package has
// ever produced; SplittingWriter's scratch file stays uncompressed too,
// since it is reread and discarded within the same run.
var compressionLevel = zlib.NoCompression

// SetCompressionLevel changes the zlib level used for every Blob this
// package writes from this point on. Passing zlib.NoCompression (the
// default) restores the plain raw-bytes encoding.
func SetCompressionLevel(level int) {
	compressionLevel = level
}

// writeBlob wires a BlobHeader + Blob pair to w: a 4-byte big-endian
// BlobHeader length, the serialized BlobHeader, then the serialized
// Blob.
func writeBlob(w io.Writer, blobType string, payload []byte) error {
	blob := newProtoWriter()
	if compressionLevel == zlib.NoCompression {
		blob.bytesField(1, payload)
	} else {
		compressed, err := compressZlib(payload, compressionLevel)
		if err != nil {
			return fmt.Errorf("osmpbf: compressing blob: %w", err)
		}
		blob.varint(2, uint64(len(payload)))
		blob.bytesField(3, compressed)
	}

	header := newProtoWriter()
	header.stringField(1, blobType)
	header.varint(3, uint64(blob.Len()))

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(header.Len()))

	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("osmpbf: writing blob header length: %w", err)
	}
	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("osmpbf: writing blob header: %w", err)
	}
	if _, err := w.Write(blob.Bytes()); err != nil {
		return fmt.Errorf("osmpbf: writing blob: %w", err)
	}
	return nil
}

func compressZlib(payload []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeaderBlock() []byte {
	hb := newProtoWriter()
	hb.stringField(4, "OsmSchema-V0.6")
	hb.stringField(4, "DenseNodes")
	hb.stringField(16, ProducerName)
	return hb.Bytes()
}

func writePrimitiveBlock(stringTable []string, groups [][]byte) []byte {
	pb := newProtoWriter()

	st := newProtoWriter()
	st.bytesField(1, []byte{}) // index 0 is reserved/unused
	for _, s := range stringTable {
		st.bytesField(1, []byte(s))
	}
	pb.message(1, st)

	for _, g := range groups {
		pb.bytesField(2, g)
	}
	return pb.Bytes()
}
