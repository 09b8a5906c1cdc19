package emgjson

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"emgpipe/internal/services"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Load reads a decomposition file from disk. Gzip wrapping is detected from
// the magic bytes so both compressed and plain JSON files load transparently.
func Load(path string) (*DecompositionFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decomposition file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	head, err := reader.Peek(2)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "emgjson", "load",
			fmt.Sprintf("%s: file too short to be a decomposition result", filepath.Base(path)), err)
	}

	decoded := &DecompositionFile{}
	if head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "emgjson", "load",
				fmt.Sprintf("%s: corrupt gzip wrapper", filepath.Base(path)), err)
		}
		defer gz.Close()
		if err := json.NewDecoder(gz).Decode(decoded); err != nil {
			return nil, services.Wrap(services.ErrValidation, "emgjson", "load",
				fmt.Sprintf("%s: decode JSON", filepath.Base(path)), err)
		}
	} else {
		if err := json.NewDecoder(reader).Decode(decoded); err != nil {
			return nil, services.Wrap(services.ErrValidation, "emgjson", "load",
				fmt.Sprintf("%s: decode JSON", filepath.Base(path)), err)
		}
	}

	if len(decoded.BinaryFiring) == 0 && len(decoded.Units) > 0 {
		decoded.BinaryFiring = BuildBinaryFiring(decoded.SignalLength(), decoded.Units)
	}
	if err := decoded.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return decoded, nil
}

// Save writes a decomposition file as gzip-wrapped JSON. The write goes
// through a temporary sibling so a crash never leaves a truncated result in
// place.
func Save(path string, f *DecompositionFile, gzipLevel int) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if gzipLevel < gzip.BestSpeed || gzipLevel > gzip.BestCompression {
		gzipLevel = gzip.DefaultCompression
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp result: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	gz, err := gzip.NewWriterLevel(tmp, gzipLevel)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("gzip writer: %w", err)
	}
	if err := json.NewEncoder(gz).Encode(f); err != nil {
		gz.Close()
		tmp.Close()
		return fmt.Errorf("encode decomposition file: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush gzip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp result: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace result file: %w", err)
	}
	return nil
}
