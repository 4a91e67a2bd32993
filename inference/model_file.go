package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ChecksumSuffix names the optional sidecar holding a model's SHA256,
// e.g. "SCUNet-GAN.onnx.sha256" next to "SCUNet-GAN.onnx".
const ChecksumSuffix = ".sha256"

// OpenModelFile returns the Loader for model files on disk. The loader
// checks that the file exists and matches its checksum sidecar when one is
// present, then opens it with the ONNX Runtime library cfg resolves to.
//
// Only a missing runtime library yields ErrBackendUnavailable. A library
// that fails to initialise yields ErrRuntimeLoadFailed and an unreadable
// model ErrModelLoadFailed.
func OpenModelFile(cfg *Config) Loader {
	return func(path string) (Session, error) {
		if err := VerifyModelChecksum(path); err != nil {
			return nil, err
		}
		library, err := cfg.FindRuntime()
		if err != nil {
			return nil, fmt.Errorf("cannot execute %s: %w", path, err)
		}
		return openONNXSession(library, path)
	}
}

// VerifyModelChecksum validates a model file against its sidecar checksum.
//
// Returns:
//   - nil if the checksum matches or no sidecar exists
//   - ErrModelNotFound if the model file doesn't exist
//   - ErrModelCorrupted on mismatch or an unreadable sidecar
func VerifyModelChecksum(modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, modelPath, err)
	}

	expected, err := readChecksumSidecar(modelPath + ChecksumSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	actual, err := CalculateChecksum(modelPath)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrModelCorrupted, expected, actual)
	}
	return nil
}

// readChecksumSidecar accepts either a bare hex digest or sha256sum output.
func readChecksumSidecar(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 || len(fields[0]) != sha256.Size*2 {
		return "", fmt.Errorf("%w: malformed checksum file %s", ErrModelCorrupted, path)
	}
	return strings.ToLower(fields[0]), nil
}

// CalculateChecksum streams a file through SHA256 and returns the lowercase
// hex digest.
func CalculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, filePath)
		}
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
