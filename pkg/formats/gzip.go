package formats

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// gzip member header magic
var gzipMagic = []byte{0x1f, 0x8b}

// IsGzip reports whether data starts with the gzip magic bytes.
func IsGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == gzipMagic[0] && data[1] == gzipMagic[1]
}

// NewGzipReader wraps r in a gzip decompressor.
func NewGzipReader(r io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "open gzip stream")
	}
	return gr, nil
}
