package dual

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// L2 payload envelope: serialized value bytes preceded by a 1-byte flag.
const (
	flagUncompressed byte = 0x00
	flagCompressed   byte = 0x01 // zlib, levels 1-9
)

// encodePayload wraps value in the envelope, compressing with zlib when
// the payload meets the threshold. A threshold of 0 compresses everything;
// a negative threshold disables compression. Returns the envelope and
// whether compression was applied.
func encodePayload(value []byte, threshold, level int) ([]byte, bool, error) {
	if threshold >= 0 && len(value) >= threshold {
		var buf bytes.Buffer
		buf.WriteByte(flagCompressed)
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, false, fmt.Errorf("zlib writer: %w", err)
		}
		if _, err := w.Write(value); err != nil {
			return nil, false, fmt.Errorf("zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, false, fmt.Errorf("zlib close: %w", err)
		}
		return buf.Bytes(), true, nil
	}

	out := make([]byte, 0, len(value)+1)
	out = append(out, flagUncompressed)
	out = append(out, value...)
	return out, false, nil
}

// decodePayload unwraps an envelope. Payloads without a recognized flag
// byte are returned as-is, a migration allowance for entries written
// before the envelope existed.
func decodePayload(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, nil
	}
	switch envelope[0] {
	case flagUncompressed:
		return envelope[1:], nil
	case flagCompressed:
		r, err := zlib.NewReader(bytes.NewReader(envelope[1:]))
		if err != nil {
			return nil, fmt.Errorf("zlib reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("zlib read: %w", err)
		}
		return out, nil
	default:
		return envelope, nil
	}
}
