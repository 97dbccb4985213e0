package cache

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Distributed-tier payloads use explicit per-workload codecs instead of
// a catch-all serializer, so that different backend versions sharing one
// Redis never silently corrupt each other's values:
//
//   - AI responses and context strings travel as raw UTF-8 bytes.
//   - RAG results, DB rows and API payloads travel as JSON.
//   - Embeddings use the versioned fixed-width format below.

// embeddingCodecVersion is bumped whenever the wire layout changes;
// readers reject versions they do not understand and treat the entry as
// a miss.
const embeddingCodecVersion = 1

// encodeEmbedding packs a float32 vector as:
//
//	[1 byte version][uint32 LE dimension][dimension × float32 LE]
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 1+4+4*len(vec))
	buf[0] = embeddingCodecVersion
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(vec)))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[5+4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding is the inverse of encodeEmbedding.
func decodeEmbedding(data []byte) ([]float32, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("cache: embedding payload too short (%d bytes)", len(data))
	}
	if data[0] != embeddingCodecVersion {
		return nil, fmt.Errorf("cache: unsupported embedding codec version %d", data[0])
	}

	dim := binary.LittleEndian.Uint32(data[1:5])
	// Compare in int64: a crafted dim near MaxUint32 would wrap dim*4 in
	// 32 bits and slip past the check into a huge allocation.
	if int64(len(data)-5) != int64(dim)*4 {
		return nil, fmt.Errorf("cache: embedding payload length mismatch: dim %d, %d data bytes", dim, len(data)-5)
	}

	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[5+4*i:]))
	}
	return vec, nil
}
