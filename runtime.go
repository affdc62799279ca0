package voicegate

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// BundledLibDir holds per-platform ONNX Runtime libraries, e.g.
// lib/linux_arm64/libonnxruntime.so.
const BundledLibDir = "lib"

// DataDir holds the ONNX models and, optionally, a runtime named
// onnxruntime_<arch>.<ext>.
const DataDir = "data"

var runtimeMu sync.Mutex

// InitRuntime points onnxruntime_go at a shared library and initializes the
// environment once per process. An empty libPath searches data/ and lib/ in
// the working directory and next to the executable, falling back to the
// system loader path.
func InitRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = ResolveRuntimeLibrary(searchDirs())
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxruntime init (%s): %w", libPath, err)
	}
	return nil
}

// ResolveRuntimeLibrary returns the first bundled runtime found under dirs,
// or "" when there is none.
func ResolveRuntimeLibrary(dirs []string) string {
	for _, base := range dirs {
		if base == "" {
			continue
		}
		if p := filepath.Join(base, DataDir, dataDirLibName()); fileExists(p) {
			return p
		}
	}
	platform := runtime.GOOS + "_" + runtime.GOARCH
	for _, base := range dirs {
		if base == "" {
			continue
		}
		for _, name := range bundledLibNames() {
			if p := filepath.Join(base, BundledLibDir, platform, name); fileExists(p) {
				return p
			}
		}
	}
	return ""
}

// bundledLibNames lists platform library names in preference order. Linux
// releases ship a versioned .so.
func bundledLibNames() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"libonnxruntime.dylib"}
	case "windows":
		return []string{"onnxruntime.dll"}
	default:
		return []string{"libonnxruntime.so.1.23.2", "libonnxruntime.so"}
	}
}

func dataDirLibName() string {
	switch runtime.GOOS {
	case "darwin":
		return "onnxruntime_" + runtime.GOARCH + ".dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "onnxruntime_" + runtime.GOARCH + ".so"
	}
}

// searchDirs is the working directory, then the executable's directory.
func searchDirs() []string {
	cwd, _ := os.Getwd()
	exe, err := os.Executable()
	if err != nil {
		return []string{cwd}
	}
	if dir := filepath.Dir(exe); dir != cwd {
		return []string{cwd, dir}
	}
	return []string{cwd}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
