package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	applogger "FloodCast/pkg/logger"
)

const (
	weightsSuffix  = "_weights.json"
	scalerSuffix   = "_scaler.json"
	metadataSuffix = "_metadata.json"
)

// Bundle is the persisted unit: architecture+weights, scaler parameters and
// run metadata. Once produced it is immutable; loading replaces any prior
// bundle wholesale.
type Bundle struct {
	Weights *NetworkState
	Scaler  *ScalerState
	Meta    Metadata
}

// SaveBundle writes the three co-located artifacts sharing basePath as a
// base name, creating missing directories.
func SaveBundle(b *Bundle, basePath string) error {
	if b == nil {
		return &PersistenceError{Op: "save", Path: basePath, Err: fmt.Errorf("nil bundle")}
	}
	// A simulated bundle has no weights artifact to write; what exists is
	// still persisted so the degraded state survives restarts.
	if b.Weights != nil {
		if err := writeJSONFile(basePath+weightsSuffix, b.Weights); err != nil {
			return &PersistenceError{Op: "save", Path: basePath + weightsSuffix, Err: err}
		}
	}
	if b.Scaler != nil {
		if err := writeJSONFile(basePath+scalerSuffix, b.Scaler); err != nil {
			return &PersistenceError{Op: "save", Path: basePath + scalerSuffix, Err: err}
		}
	}
	if err := writeJSONFile(basePath+metadataSuffix, &b.Meta); err != nil {
		return &PersistenceError{Op: "save", Path: basePath + metadataSuffix, Err: err}
	}
	return nil
}

// LoadBundle reconstructs a bundle from disk. A missing weights artifact is
// fatal; missing scaler or metadata artifacts degrade to default state with
// a logged warning rather than silent data loss. Loading never requires
// training to have happened in the same process.
func LoadBundle(basePath string, logger *applogger.Logger) (*Bundle, error) {
	var weights NetworkState
	if err := readJSONFile(basePath+weightsSuffix, &weights); err != nil {
		return nil, &PersistenceError{Op: "load", Path: basePath + weightsSuffix, Err: err}
	}
	b := &Bundle{Weights: &weights}

	var scaler ScalerState
	switch err := readJSONFile(basePath+scalerSuffix, &scaler); {
	case err == nil:
		b.Scaler = &scaler
	case os.IsNotExist(err):
		if logger != nil {
			logger.Warn("bundle loaded without scaler artifact, transforms unavailable until refit",
				applogger.String("path", basePath+scalerSuffix))
		}
	default:
		return nil, &PersistenceError{Op: "load", Path: basePath + scalerSuffix, Err: err}
	}

	var meta Metadata
	switch err := readJSONFile(basePath+metadataSuffix, &meta); {
	case err == nil:
		b.Meta = meta
	case os.IsNotExist(err):
		if logger != nil {
			logger.Warn("bundle loaded without metadata artifact",
				applogger.String("path", basePath+metadataSuffix))
		}
	default:
		return nil, &PersistenceError{Op: "load", Path: basePath + metadataSuffix, Err: err}
	}

	return b, nil
}

// BundleExists reports whether the mandatory weights artifact is present.
func BundleExists(basePath string) bool {
	_, err := os.Stat(basePath + weightsSuffix)
	return err == nil
}

func writeJSONFile(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return f.Sync()
}

func readJSONFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
