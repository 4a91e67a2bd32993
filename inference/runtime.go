package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// RuntimeLibraryName is the ONNX Runtime shared library looked up when
// Config.RuntimeLibrary is empty.
var RuntimeLibraryName = defaultRuntimeLibrary()

// librarySearchEnv names the variable listing the directories the dynamic
// loader itself searches.
func librarySearchEnv() string {
	switch runtime.GOOS {
	case "windows":
		return "PATH"
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

func defaultRuntimeLibrary() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

// FindRuntime resolves the ONNX Runtime shared library. A RuntimeLibrary
// containing a path separator must exist as given. A bare name is searched
// for in ModelDir, next to the executable, in the loader's library path and
// in the system library directories.
//
// Returns ErrBackendUnavailable when no such file exists.
func (c *Config) FindRuntime() (string, error) {
	name := c.RuntimeLibrary
	if name == "" {
		name = RuntimeLibraryName
	}

	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		if isFile(name) {
			return filepath.Abs(name)
		}
		return "", fmt.Errorf("%w: ONNX Runtime library %s does not exist", ErrBackendUnavailable, name)
	}

	for _, dir := range c.runtimeSearchPath() {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("%w: ONNX Runtime library %s not found; set INFER_ORT_LIBRARY to its path",
		ErrBackendUnavailable, name)
}

func (c *Config) runtimeSearchPath() []string {
	dirs := []string{c.ModelDir}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	for _, dir := range filepath.SplitList(os.Getenv(librarySearchEnv())) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if runtime.GOOS != "windows" {
		dirs = append(dirs, "/usr/local/lib", "/usr/lib", "/usr/lib64")
	}
	return dirs
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
