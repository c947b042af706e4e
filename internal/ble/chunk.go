package ble

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

const (
	// DefaultMTU is the ATT MTU every link starts with before an exchange.
	DefaultMTU = 23
	// attWriteOverhead is the opcode and handle of an ATT write.
	attWriteOverhead = 3
	// DefaultChunkDelay paces writes so small firmware buffers keep up.
	DefaultChunkDelay = 20 * time.Millisecond
)

// ChunkSize returns the largest value that fits in one write to char. It
// falls back to the default MTU when the stack cannot report one.
func ChunkSize(char Characteristic) int {
	mtu, err := char.MTU()
	if err != nil || mtu < DefaultMTU {
		if err != nil {
			slog.Debug("[BLE] MTU unavailable, using default", "mtu", DefaultMTU, "error", err)
		}
		mtu = DefaultMTU
	}
	return mtu - attWriteOverhead
}

// SplitPayload splits data into chunks of at most maxBytes. It never splits
// in the middle of a UTF-8 character, so every chunk stays printable in
// device logs. Returns nil for empty data.
func SplitPayload(data []byte, maxBytes int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	if maxBytes <= 0 || len(data) <= maxBytes {
		return [][]byte{data}
	}

	var chunks [][]byte
	for len(data) > 0 {
		if len(data) <= maxBytes {
			chunks = append(chunks, data)
			break
		}

		// Walk back to the start of a rune.
		split := maxBytes
		for split > 0 && !utf8.RuneStart(data[split]) {
			split--
		}
		if split == 0 {
			split = maxBytes
		}

		chunks = append(chunks, data[:split])
		data = data[split:]
	}
	return chunks
}

// WriteChunked writes data to char in MTU-sized pieces, waiting delay
// between pieces. The receiver reassembles them in order.
func WriteChunked(char Characteristic, data []byte, delay time.Duration) error {
	chunks := SplitPayload(data, ChunkSize(char))
	for i, chunk := range chunks {
		if err := char.Write(chunk); err != nil {
			return fmt.Errorf("ble: write chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 && delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}
