package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the dataset as a pretty-printed JSON document. Every save
// rewrites the whole file via a temp-file rename so a crash mid-write never
// leaves a truncated checkpoint behind.
type Store struct {
	Dir  string
	File string
}

func (s Store) Path() string {
	return filepath.Join(s.Dir, s.File)
}

// Load reads the checkpoint. A missing file is reported as-is so callers can
// distinguish "fresh run" from a corrupt document.
func (s Store) Load() (Dataset, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, err
	}
	ds := Dataset{}
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path(), err)
	}
	return ds, nil
}

// Save checkpoints the full dataset plus the clinician-map sidecar
// (id -> display name, kept for operators poking at raw results).
func (s Store) Save(ds Dataset) error {
	if len(ds) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	if err := writeJSON(s.Path(), ds); err != nil {
		return err
	}
	names := make(map[string]string, len(ds))
	for id, rec := range ds {
		if rec != nil {
			names[id] = rec.Name
		}
	}
	return writeJSON(filepath.Join(s.Dir, "clinician-map.json"), names)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// AppendError appends a timestamped entry to a log sidecar in the results
// directory (error-log.txt for the main pass, error-retry-log.txt for sweeps).
func (s Store) AppendError(logFile, message string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, logFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), message)
	return err
}

// WriteDebugHTML dumps a rendered page for clinicians that produced zero
// slots, so selector drift can be diagnosed offline.
func (s Store) WriteDebugHTML(clinicianID, html string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, "debug-"+clinicianID+".html"), []byte(html), 0o644)
}

// Clear removes an existing checkpoint so a refresh pass starts clean.
func (s Store) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
