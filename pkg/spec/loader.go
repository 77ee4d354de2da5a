package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pmaojo/apicentric/pkg/apierrors"
)

// MaxFileSize caps a single service definition file. Larger files are
// rejected with KindYamlTooLarge before parsing.
const MaxFileSize = 10 * 1024 * 1024 // 10 MiB

// LoadFile parses and validates a single service definition file.
func LoadFile(path string) (*Service, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.New(apierrors.KindFileReadError, path, "file not found")
		}
		return nil, apierrors.Wrap(apierrors.KindFileReadError, path, err)
	}
	if info.IsDir() {
		return nil, apierrors.New(apierrors.KindFileReadError, path, "path is a directory")
	}
	if info.Size() > MaxFileSize {
		return nil, apierrors.New(apierrors.KindYamlTooLarge, path,
			fmt.Sprintf("file size %d exceeds limit %d", info.Size(), MaxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindFileReadError, path, err)
	}

	var svc Service
	if err := yaml.Unmarshal(data, &svc); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInvalidSpec, path, err).
			WithHint("check YAML syntax")
	}
	svc.SourcePath = path

	if errs := Validate(&svc); errs.HasErrors() {
		return nil, errs
	}

	return &svc, nil
}

// ParseBytes validates and parses a service definition supplied directly as
// YAML bytes (as opposed to a file on disk), for manager operations that
// accept a YAML payload over the control interface (§4.10 `create`/`update`).
func ParseBytes(data []byte) (*Service, error) {
	if len(data) > MaxFileSize {
		return nil, apierrors.New(apierrors.KindYamlTooLarge, "",
			fmt.Sprintf("payload size %d exceeds limit %d", len(data), MaxFileSize))
	}

	var svc Service
	if err := yaml.Unmarshal(data, &svc); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInvalidSpec, "", err).
			WithHint("check YAML syntax")
	}

	if errs := Validate(&svc); errs.HasErrors() {
		return nil, errs
	}

	return &svc, nil
}

// LoadDirResult is the outcome of loading every definition in a directory.
type LoadDirResult struct {
	Services []*Service
	Errors   apierrors.InvalidSpecList
}

// LoadDir loads every *.yaml/*.yml file directly within dir (non-recursive,
// matching the one-file-per-service convention of §4.1). Per-file failures
// are accumulated rather than aborting the whole load.
func LoadDir(dir string) (*LoadDirResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindFileReadError, dir, err)
	}

	result := &LoadDirResult{}
	names := make(map[string]string) // name -> first file that declared it

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		svc, err := LoadFile(path)
		if err != nil {
			if list, ok := err.(apierrors.InvalidSpecList); ok {
				result.Errors = append(result.Errors, list...)
			} else {
				result.Errors = append(result.Errors, &apierrors.InvalidSpec{
					File:   path,
					Reason: err.Error(),
				})
			}
			continue
		}

		if first, dup := names[svc.Name]; dup {
			result.Errors = append(result.Errors, &apierrors.InvalidSpec{
				File:   path,
				Reason: fmt.Sprintf("service name %q already declared in %s", svc.Name, first),
				Hint:   "service names must be unique across the directory",
			})
			continue
		}
		names[svc.Name] = path

		result.Services = append(result.Services, svc)
	}

	return result, nil
}

// Save writes a service definition back to its source file atomically
// (write-temp, fsync, rename), matching the convention used for recording
// appends (§4.5).
func Save(svc *Service, path string) error {
	data, err := yaml.Marshal(svc)
	if err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*.yaml")
	if err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apierrors.Wrap(apierrors.KindFileWriteError, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apierrors.Wrap(apierrors.KindFileWriteError, path, err)
	}
	if err := tmp.Close(); err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return apierrors.Wrap(apierrors.KindFileWriteError, path, err)
	}
	return nil
}
