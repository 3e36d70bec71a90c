package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SourceMetadata identifies one SDL source.
type SourceMetadata struct {
	Name string
}

// Discovery lists and reads SDL sources.
type Discovery interface {
	ListSources(ctx context.Context) ([]*SourceMetadata, error)
	ReadSource(ctx context.Context, name string) (string, error)
}

// FileSystemDiscovery finds *.graphql and *.graphqls files below a root
// directory, or a single file when root names one.
type FileSystemDiscovery struct {
	paths map[string]string
	names []string
}

func NewFileSystemDiscovery(root string) (*FileSystemDiscovery, error) {
	d := &FileSystemDiscovery{paths: make(map[string]string)}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("schema root %q: %w", root, err)
	}
	if !info.IsDir() {
		d.add(filepath.Base(root), root)
		return d, nil
	}
	err = filepath.WalkDir(root, func(path string, e os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		switch filepath.Ext(e.Name()) {
		case ".graphql", ".graphqls":
		default:
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}
		d.add(filepath.ToSlash(rel), path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk schema root %q: %w", root, err)
	}
	sort.Strings(d.names)
	return d, nil
}

func (d *FileSystemDiscovery) add(name, path string) {
	d.paths[name] = path
	d.names = append(d.names, name)
}

func (d *FileSystemDiscovery) ListSources(ctx context.Context) ([]*SourceMetadata, error) {
	out := make([]*SourceMetadata, 0, len(d.names))
	for _, n := range d.names {
		out = append(out, &SourceMetadata{Name: n})
	}
	return out, nil
}

func (d *FileSystemDiscovery) ReadSource(ctx context.Context, name string) (string, error) {
	path, ok := d.paths[name]
	if !ok {
		return "", fmt.Errorf("source %q not found", name)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema source %q: %w", name, err)
	}
	return string(content), nil
}

// InMemorySource is an SDL document held in memory.
type InMemorySource struct {
	Name    string
	Content string
}

// InMemoryDiscovery serves sources from memory, in the order given.
type InMemoryDiscovery struct {
	sources []InMemorySource
}

func NewInMemoryDiscovery(sources ...InMemorySource) *InMemoryDiscovery {
	return &InMemoryDiscovery{sources: sources}
}

func (d *InMemoryDiscovery) ListSources(ctx context.Context) ([]*SourceMetadata, error) {
	out := make([]*SourceMetadata, 0, len(d.sources))
	for _, s := range d.sources {
		out = append(out, &SourceMetadata{Name: s.Name})
	}
	return out, nil
}

func (d *InMemoryDiscovery) ReadSource(ctx context.Context, name string) (string, error) {
	for _, s := range d.sources {
		if s.Name == name {
			return s.Content, nil
		}
	}
	return "", fmt.Errorf("source %q not found", name)
}
