// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements saga.WorkflowStore: persistence and the
// enable/disable lifecycle of workflow definitions (spec.md section 6 -
// WorkflowStore; SPEC_FULL.md section 3 - supplemented CRUD surface),
// grounded on the original saga_configuration CRUD/status API.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sagaflow/pkg/saga"
)

// Feature: STORE_WORKFLOW_DEFINITIONS
// Spec: SPEC_FULL.md section 3 (Supplemented Features)

// Status mirrors the original SagaConfigurationStatus: a definition must be
// explicitly enabled before it can be executed.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

// ErrNotFound is returned when an id does not name a stored record.
var ErrNotFound = fmt.Errorf("workflow configuration not found")

// ErrNameConflict is returned when Create or Update would violate the
// name-uniqueness invariant.
var ErrNameConflict = fmt.Errorf("workflow configuration name already exists")

// Record is the stored representation of a workflow definition: its raw
// YAML body plus the name/version/status columns the original kept
// alongside it.
type Record struct {
	ID          string
	Name        string
	Version     string
	Description string
	YAML        []byte
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the CRUD + lifecycle surface internal/api drives over HTTP,
// satisfied by both Memory (single-node, no Postgres DSN set) and Postgres
// (persisted across restarts, shared by multiple API processes).
type Store interface {
	saga.WorkflowStore
	Create(ctx context.Context, name, version, description string, yamlContent []byte) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Update(ctx context.Context, id string, name, version, description *string, yamlContent []byte) (*Record, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) (*Record, error)
}

// Memory is an in-process saga.WorkflowStore, and also satisfies the CRUD
// surface internal/api exposes over HTTP.
type Memory struct {
	mu      sync.Mutex
	records map[string]*Record
	seq     int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record)}
}

// Load implements saga.WorkflowStore: parses the stored YAML against the
// stored name/version on every call, so a Parse-time mistake can never be
// masked by a stale cached WorkflowDefinition.
func (m *Memory) Load(_ context.Context, id string) (*saga.WorkflowDefinition, error) {
	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	workflow, err := saga.Define(rec.Name, rec.Version, rec.YAML)
	if err != nil {
		return nil, err
	}
	workflow.ConfigID = rec.ID
	return workflow, nil
}

// Enabled implements saga.WorkflowStore.
func (m *Memory) Enabled(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return false, ErrNotFound
	}
	return rec.Status == StatusActive, nil
}

// Create validates the YAML eagerly and enforces name uniqueness before
// storing a new DRAFT record (original_source/app/api/saga_configuration.py
// create_saga_configuration).
func (m *Memory) Create(_ context.Context, name, version, description string, yamlContent []byte) (*Record, error) {
	if _, err := saga.Parse(yamlContent); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Name == name {
			return nil, ErrNameConflict
		}
	}

	m.seq++
	now := time.Now().UTC()
	rec := &Record{
		ID:          fmt.Sprintf("%d", m.seq),
		Name:        name,
		Version:     version,
		Description: description,
		YAML:        yamlContent,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.records[rec.ID] = rec
	return rec, nil
}

// Get returns a stored record by id.
func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns all stored records, sorted by id for deterministic output.
func (m *Memory) List(_ context.Context) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update revalidates YAML if provided and reapplies the name-uniqueness
// check before replacing the stored record.
func (m *Memory) Update(_ context.Context, id string, name, version, description *string, yamlContent []byte) (*Record, error) {
	if yamlContent != nil {
		if _, err := saga.Parse(yamlContent); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	if name != nil && *name != rec.Name {
		for otherID, other := range m.records {
			if otherID != id && other.Name == *name {
				return nil, ErrNameConflict
			}
		}
		rec.Name = *name
	}
	if version != nil {
		rec.Version = *version
	}
	if description != nil {
		rec.Description = *description
	}
	if yamlContent != nil {
		rec.YAML = yamlContent
	}
	rec.UpdatedAt = time.Now().UTC()
	return rec, nil
}

// Delete removes a stored record.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// SetStatus transitions a record's lifecycle status (enable/disable).
func (m *Memory) SetStatus(_ context.Context, id string, status Status) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return rec, nil
}
