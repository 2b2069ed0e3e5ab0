package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"medialog/internal/config"
	"medialog/internal/deps"
	"medialog/internal/identification/signature"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckResultsLocation verifies the results database can be created or
// written. An existing file must be writable; otherwise its directory must be.
func CheckResultsLocation(path string) Result {
	const name = "Results database"

	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	if _, err := os.Stat(path); err == nil {
		if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", path, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (exists)", path)}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	dir := filepath.Dir(path)
	check := CheckDirectoryAccess(name, dir)
	if !check.Passed {
		return check
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckSignatureDatabase loads the configured signature database and reports
// its version. An empty path checks the built-in database.
func CheckSignatureDatabase(path string) Result {
	const name = "Signature database"

	var (
		db  *signature.Database
		err error
	)
	source := "built-in"
	if strings.TrimSpace(path) == "" {
		db, err = signature.Default()
	} else {
		source = path
		db, err = signature.LoadFile(path)
	}
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", source, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s version %s, %d formats", source, db.Version, len(db.Formats))}
}

// CheckFido verifies the external engine binary resolves on PATH.
func CheckFido(ctx context.Context, cfg *config.Config) Result {
	const name = "fido"

	statuses := CheckEngineDeps(ctx, cfg)
	for _, status := range statuses {
		if status.Name != name {
			continue
		}
		if !status.Available {
			return Result{Name: name, Detail: status.Detail}
		}
		detail := status.Path
		if status.Version != "" {
			detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
		}
		return Result{Name: name, Passed: true, Detail: detail}
	}
	return Result{Name: name, Detail: "not configured"}
}

// CheckEngineDeps evaluates the external binaries the enabled engines need.
func CheckEngineDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	var requirements []deps.Requirement
	if cfg.Engines.Fido.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "fido",
			Command:     cfg.Engines.Fido.Binary,
			Description: "External format identification",
			VersionArgs: []string{"-v"},
		})
	}
	return deps.CheckBinaries(ctx, requirements)
}
