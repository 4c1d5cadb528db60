package disk

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// blockCodec compresses page images before they reach the key-value store. Sparse pages
// (fresh arc blocks, zero padding) shrink to a few bytes.
type blockCodec struct {
	enabled bool
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newBlockCodec(enabled bool) (*blockCodec, error) {
	if !enabled {
		return &blockCodec{}, nil
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &blockCodec{enabled: true, encoder: encoder, decoder: decoder}, nil
}

func (c *blockCodec) encode(page []byte) []byte {
	if !c.enabled {
		out := make([]byte, len(page))
		copy(out, page)
		return out
	}
	return c.encoder.EncodeAll(page, make([]byte, 0, len(page)/4))
}

func (c *blockCodec) decode(stored []byte, blockSize int) ([]byte, error) {
	if !c.enabled {
		return stored, nil
	}
	return c.decoder.DecodeAll(stored, make([]byte, 0, blockSize))
}

func (c *blockCodec) close() error {
	if !c.enabled {
		return nil
	}
	c.decoder.Close()
	return c.encoder.Close()
}
