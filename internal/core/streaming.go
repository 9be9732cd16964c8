package core

// streaming.go wraps upload readers so the parser always sees clean UTF-8:
//
//   - a UTF-8 BOM is removed; UTF-16 files with a BOM are transcoded
//   - invalid UTF-8 sequences become U+FFFD
//   - reads stop with a "file too large" error past the size limit

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader returns a reader yielding valid UTF-8 without a byte order mark.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadAllLimited reads r fully, failing once more than max bytes were seen.
// A max of zero or less disables the limit.
func ReadAllLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", max)
	}
	return data, nil
}
