// Package store persists saved workflows as one JSON file per document.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"axon/internal/logging"
	"axon/internal/workflow"
)

// Saved is a workflow document at rest, with bookkeeping timestamps.
type Saved struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Nodes       []workflow.Node `json:"nodes"`
	Edges       []workflow.Edge `json:"edges"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Document converts the saved record back to an executable document.
func (s *Saved) Document() *workflow.Document {
	doc := &workflow.Document{ID: s.ID, Name: s.Name, Nodes: s.Nodes, Edges: s.Edges}
	return doc.Clone()
}

// Store is a file-backed workflow store rooted at one directory.
type Store struct {
	mu      sync.RWMutex
	baseDir string
	logger  logging.Logger
}

// New creates the store, expanding a leading ~/ and creating the directory.
func New(baseDir string, logger logging.Logger) (*Store, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create workflow dir: %w", err)
	}
	return &Store{baseDir: baseDir, logger: logging.OrNop(logger)}, nil
}

// Save persists a workflow. When existingID names a stored workflow the
// record is updated in place and keeps its creation time; otherwise a fresh
// id is allocated.
func (s *Store) Save(name string, nodes []workflow.Node, edges []workflow.Edge, description, existingID string) (*Saved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	saved := &Saved{
		ID:          existingID,
		Name:        name,
		Description: description,
		Nodes:       nodes,
		Edges:       edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if existingID != "" {
		if prev, err := s.read(existingID); err == nil {
			saved.CreatedAt = prev.CreatedAt
		}
	} else {
		saved.ID = workflow.NewID()
	}

	if err := s.write(saved); err != nil {
		return nil, err
	}
	s.logger.Info("Saved workflow %s (%s): %d nodes, %d edges", saved.ID, name, len(nodes), len(edges))
	return saved, nil
}

// Get loads a workflow by id.
func (s *Store) Get(id string) (*Saved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

// List returns every stored workflow, most recently updated first.
func (s *Store) List() ([]*Saved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	var out []*Saved
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		saved, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			s.logger.Warn("Skipping unreadable workflow file %s: %v", entry.Name(), err)
			continue
		}
		out = append(out, saved)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a workflow by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("workflow not found: %s", id)
	}
	return os.Remove(path)
}

// Rename changes a workflow's name, bumping its updated timestamp.
func (s *Store) Rename(id, name string) (*Saved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.read(id)
	if err != nil {
		return nil, err
	}
	saved.Name = name
	saved.UpdatedAt = time.Now()
	if err := s.write(saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// Duplicate copies a workflow under a new id. An empty name defaults to
// "<original> (copy)".
func (s *Store) Duplicate(id, name string) (*Saved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = src.Name + " (copy)"
	}

	now := time.Now()
	dup := &Saved{
		ID:          workflow.NewID(),
		Name:        name,
		Description: src.Description,
		Nodes:       src.Nodes,
		Edges:       src.Edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.write(dup); err != nil {
		return nil, err
	}
	return dup, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *Store) read(id string) (*Saved, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("workflow not found: %s", id)
	}
	var saved Saved
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	return &saved, nil
}

func (s *Store) write(saved *Saved) error {
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	if err := os.WriteFile(s.path(saved.ID), data, 0644); err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	return nil
}
