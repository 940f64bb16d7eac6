package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// stagedFile is one file of an edit session.
type stagedFile struct {
	name string
	data []byte
	perm os.FileMode
}

type previousFile struct {
	path    string
	data    []byte
	existed bool
	perm    os.FileMode
}

// writeSession writes every file or none. Contents are staged as temp files
// in dir first; targets are only replaced once all of them are staged, and a
// failed replace restores what was there before.
func writeSession(dir string, files []stagedFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temps := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}
	for _, f := range files {
		tmp, err := stage(dir, f)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", f.name, err)
		}
		temps = append(temps, tmp)
	}

	replaced := make([]previousFile, 0, len(files))
	for i, f := range files {
		target := filepath.Join(dir, f.name)
		prev, err := snapshot(target)
		if err != nil {
			cleanup()
			restore(replaced)
			return err
		}
		if err := os.Rename(temps[i], target); err != nil {
			cleanup()
			restore(replaced)
			return fmt.Errorf("replace %s: %w", f.name, err)
		}
		replaced = append(replaced, prev)
	}
	return nil
}

func stage(dir string, f stagedFile) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+f.name+".*.tmp")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if _, err := tmp.Write(f.data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	if err := tmp.Chmod(f.perm); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func snapshot(path string) (previousFile, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return previousFile{path: path}, nil
	}
	if err != nil {
		return previousFile{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return previousFile{}, err
	}
	return previousFile{path: path, data: data, existed: true, perm: info.Mode().Perm()}, nil
}

func restore(files []previousFile) {
	for _, prev := range files {
		if !prev.existed {
			_ = os.Remove(prev.path)
			continue
		}
		_ = os.WriteFile(prev.path, prev.data, prev.perm)
	}
}
