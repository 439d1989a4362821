package backlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// snapshotFile is the on-disk layout of a saved queue.
type snapshotFile struct {
	Version   string     `yaml:"version"`
	Namespace string     `yaml:"namespace"`
	Items     []WorkItem `yaml:"items"`
}

// SaveSnapshot writes the queue ordering to path as YAML. Embeddings are
// not written; they persist in the index backend.
func SaveSnapshot(path string, q *Queue) error {
	data, err := yaml.Marshal(snapshotFile{
		Version:   "1",
		Namespace: q.Namespace(),
		Items:     q.Items(),
	})
	if err != nil {
		return fmt.Errorf("saving backlog snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving backlog snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("saving backlog snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("saving backlog snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores the items saved at path into q. A missing file
// leaves q untouched.
func LoadSnapshot(path string, q *Queue) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading backlog snapshot: %w", err)
	}

	var snap snapshotFile
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("loading backlog snapshot: parsing YAML: %w", err)
	}
	if snap.Namespace != "" && snap.Namespace != q.Namespace() {
		return fmt.Errorf("loading backlog snapshot: file belongs to namespace %q, queue uses %q", snap.Namespace, q.Namespace())
	}

	for i := range snap.Items {
		if snap.Items[i].ID == "" {
			snap.Items[i].ID = ItemID(snap.Items[i].Description)
		}
	}
	q.restore(snap.Items)
	return nil
}

// SnapshotPath returns the conventional snapshot location for a namespace.
func SnapshotPath(stateDir, namespace string) string {
	return filepath.Join(stateDir, namespace+".yaml")
}
