// internal/infra/python/interpreter.go
package python

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// InterpreterPath resolves the interpreter location inside an environment
// prefix from a `major.minor` Python version, following the conventional
// layout of conda-style environments: bin/pythonX.Y on unix, python.exe at
// the prefix root on Windows.
func InterpreterPath(prefix, version string) (string, error) {
	major, minor, err := parseVersion(version)
	if err != nil {
		return "", err
	}

	if runtime.GOOS == "windows" {
		return filepath.Join(prefix, "python.exe"), nil
	}
	return filepath.Join(prefix, "bin", fmt.Sprintf("python%d.%d", major, minor)), nil
}

func parseVersion(version string) (major, minor int, err error) {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid python version %q: want major.minor", version)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid python version %q: %w", version, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid python version %q: %w", version, err)
	}
	return major, minor, nil
}
