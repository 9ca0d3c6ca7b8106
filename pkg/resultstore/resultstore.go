// Package resultstore persists computed concurrency analyses as compact
// snapshot files: a small header followed by an LZ4 block of the
// JSON-encoded result. Snapshots let expensive analyses over large check-run
// exports be rendered or compared later without recomputation.
package resultstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/vmarkovtsev/athenian-api/pkg/metrics/concurrency"
	"github.com/vmarkovtsev/athenian-api/pkg/safeconv"
)

// Snapshot format errors.
var (
	// ErrBadMagic is returned when the input is not a snapshot file.
	ErrBadMagic = errors.New("resultstore: not a snapshot file")

	// ErrBadVersion is returned for snapshots from an unknown format version.
	ErrBadVersion = errors.New("resultstore: unsupported snapshot version")

	// ErrCorrupted is returned when the compressed payload cannot be restored.
	ErrCorrupted = errors.New("resultstore: corrupted snapshot payload")

	// ErrTooLarge is returned when a payload exceeds the snapshot size limit,
	// on save as well as on load.
	ErrTooLarge = errors.New("resultstore: payload exceeds size limit")
)

// Snapshot file layout: magic, format version, codec byte, uncompressed
// payload size, then the payload (one LZ4 block, or raw JSON when LZ4 could
// not shrink it).
const (
	magic         = "ATHC"
	formatVersion = 1
	headerSize    = len(magic) + 2 + 4

	codecRaw = 0
	codecLZ4 = 1

	maxPayloadSize = 1 << 30
)

// Save writes a snapshot of the result to w.
func Save(w io.Writer, result *concurrency.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("resultstore: encode result: %w", err)
	}

	if err := checkPayloadSize(len(payload)); err != nil {
		return err
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(payload)))

	written, err := lz4.CompressBlock(payload, compressed, nil)
	if err != nil {
		return fmt.Errorf("resultstore: compress result: %w", err)
	}

	// CompressBlock reports zero for incompressible input; store raw then.
	codec := byte(codecLZ4)
	if written == 0 {
		codec = codecRaw
		compressed = payload
	} else {
		compressed = compressed[:written]
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic...)
	header = append(header, formatVersion, codec)
	header = binary.LittleEndian.AppendUint32(header, safeconv.MustIntToUint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("resultstore: write header: %w", err)
	}

	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("resultstore: write payload: %w", err)
	}

	return nil
}

// Load reads a snapshot produced by Save.
func Load(r io.Reader) (*concurrency.Result, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("resultstore: read header: %w", err)
	}

	if string(header[:len(magic)]) != magic {
		return nil, ErrBadMagic
	}

	if header[len(magic)] != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, header[len(magic)])
	}

	codec := header[len(magic)+1]

	payloadSize := binary.LittleEndian.Uint32(header[len(magic)+2:])
	if err := checkPayloadSize(int(payloadSize)); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("resultstore: read payload: %w", err)
	}

	payload, err := decode(codec, body, int(payloadSize))
	if err != nil {
		return nil, err
	}

	var result concurrency.Result

	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	return &result, nil
}

// checkPayloadSize enforces the payload ceiling symmetrically: a snapshot
// that cannot be loaded back is never written in the first place.
func checkPayloadSize(size int) error {
	if size > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, maxPayloadSize)
	}

	return nil
}

// decode restores the JSON payload according to the codec byte.
func decode(codec byte, body []byte, payloadSize int) ([]byte, error) {
	switch codec {
	case codecRaw:
		if len(body) != payloadSize {
			return nil, fmt.Errorf("%w: raw payload is %d of %d bytes", ErrCorrupted, len(body), payloadSize)
		}

		return body, nil

	case codecLZ4:
		payload := make([]byte, payloadSize)

		n, err := lz4.UncompressBlock(body, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
		}

		if n != payloadSize {
			return nil, fmt.Errorf("%w: decompressed %d of %d bytes", ErrCorrupted, n, payloadSize)
		}

		return payload, nil

	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupted, codec)
	}
}

// SaveFile writes a snapshot to the given path.
func SaveFile(path string, result *concurrency.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("resultstore: create %s: %w", path, err)
	}

	if err := Save(file, result); err != nil {
		_ = file.Close()

		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("resultstore: close %s: %w", path, err)
	}

	return nil
}

// LoadFile reads a snapshot from the given path.
func LoadFile(path string) (*concurrency.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resultstore: open %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
