// Package gateregistry implements the Gate Registry component (spec.md
// §4.2, §4.6): named gate definitions and label namespaces, each held in
// its own JSON file under local_jit and mutated under its own exclusive
// file lock (spec.md §6 "Shared resources" — gates.json and
// label-namespaces.json are "shared, per-file exclusive lock"). Grounded
// on the teacher's internal/daemon/registry.go read-modify-write-under-
// flock idiom, adapted from its SQLite-row registry to these two
// singleton JSON documents.
package gateregistry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jit-dev/jit/internal/atomicfile"
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/lockfile"
	"github.com/jit-dev/jit/internal/types"
)

const (
	gatesFileName      = "gates.json"
	namespacesFileName = "label-namespaces.json"
	lockTimeout         = 5 * time.Second
)

// Registry owns gates.json and label-namespaces.json for one worktree's
// local_jit.
type Registry struct {
	localJIT string
	locker   *lockfile.Locker
}

// New returns a Registry rooted at localJIT.
func New(localJIT string) *Registry {
	return &Registry{localJIT: localJIT, locker: &lockfile.Locker{}}
}

func (r *Registry) gatesPath() string      { return filepath.Join(r.localJIT, gatesFileName) }
func (r *Registry) namespacesPath() string { return filepath.Join(r.localJIT, namespacesFileName) }
func (r *Registry) gatesLockPath() string  { return r.gatesPath() + ".lock" }
func (r *Registry) namespacesLockPath() string {
	return r.namespacesPath() + ".lock"
}

type gatesDoc struct {
	SchemaVersion uint32                         `json:"schema_version"`
	Gates         map[string]*types.GateDefinition `json:"gates"`
}

type namespacesDoc struct {
	SchemaVersion uint32                            `json:"schema_version"`
	Namespaces    map[string]*types.LabelNamespace `json:"namespaces"`
}

func (r *Registry) readGates() (*gatesDoc, error) {
	doc := &gatesDoc{SchemaVersion: 1, Gates: map[string]*types.GateDefinition{}}
	data, err := os.ReadFile(r.gatesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, errkind.Wrap(errkind.IO, err, "read %s", r.gatesPath())
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errkind.Wrap(errkind.Corruption, err, "parse %s", r.gatesPath())
	}
	if doc.Gates == nil {
		doc.Gates = map[string]*types.GateDefinition{}
	}
	return doc, nil
}

func (r *Registry) writeGates(doc *gatesDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "encode gates registry")
	}
	if err := os.MkdirAll(r.localJIT, 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create %s", r.localJIT)
	}
	return atomicfile.Write(r.gatesPath(), data, 0o644)
}

func (r *Registry) readNamespaces() (*namespacesDoc, error) {
	doc := &namespacesDoc{SchemaVersion: 1, Namespaces: map[string]*types.LabelNamespace{}}
	data, err := os.ReadFile(r.namespacesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, errkind.Wrap(errkind.IO, err, "read %s", r.namespacesPath())
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errkind.Wrap(errkind.Corruption, err, "parse %s", r.namespacesPath())
	}
	if doc.Namespaces == nil {
		doc.Namespaces = map[string]*types.LabelNamespace{}
	}
	return doc, nil
}

func (r *Registry) writeNamespaces(doc *namespacesDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "encode label namespaces registry")
	}
	if err := os.MkdirAll(r.localJIT, 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create %s", r.localJIT)
	}
	return atomicfile.Write(r.namespacesPath(), data, 0o644)
}

// Gate returns the gate definition for key, or NOT_FOUND.
func (r *Registry) Gate(key string) (*types.GateDefinition, error) {
	doc, err := r.readGates()
	if err != nil {
		return nil, err
	}
	g, ok := doc.Gates[key]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "gate %q not found", key)
	}
	return g, nil
}

// Gates returns every registered gate definition.
func (r *Registry) Gates() (map[string]*types.GateDefinition, error) {
	doc, err := r.readGates()
	if err != nil {
		return nil, err
	}
	return doc.Gates, nil
}

// PutGate inserts or replaces a gate definition under an exclusive lock on
// gates.json.
func (r *Registry) PutGate(def *types.GateDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	guard, err := r.locker.LockExclusive(r.gatesLockPath(), lockTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	doc, err := r.readGates()
	if err != nil {
		return err
	}
	doc.Gates[def.Key] = def
	return r.writeGates(doc)
}

// DeleteGate removes a gate definition.
func (r *Registry) DeleteGate(key string) error {
	guard, err := r.locker.LockExclusive(r.gatesLockPath(), lockTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	doc, err := r.readGates()
	if err != nil {
		return err
	}
	if _, ok := doc.Gates[key]; !ok {
		return errkind.New(errkind.NotFound, "gate %q not found", key)
	}
	delete(doc.Gates, key)
	return r.writeGates(doc)
}

// ResolveGateKeys checks invariant I4: every key in keys resolves to a
// registry entry.
func (r *Registry) ResolveGateKeys(keys []string) error {
	doc, err := r.readGates()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := doc.Gates[k]; !ok {
			return errkind.New(errkind.InvalidArgument, "gate key %q does not resolve to a registry entry", k)
		}
	}
	return nil
}

// Namespace returns the label namespace definition for name, or NOT_FOUND.
func (r *Registry) Namespace(name string) (*types.LabelNamespace, error) {
	doc, err := r.readNamespaces()
	if err != nil {
		return nil, err
	}
	ns, ok := doc.Namespaces[name]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "label namespace %q not found", name)
	}
	return ns, nil
}

// Namespaces returns every registered label namespace.
func (r *Registry) Namespaces() (map[string]*types.LabelNamespace, error) {
	doc, err := r.readNamespaces()
	if err != nil {
		return nil, err
	}
	return doc.Namespaces, nil
}

// PutNamespace inserts or replaces a label namespace definition.
func (r *Registry) PutNamespace(ns *types.LabelNamespace) error {
	guard, err := r.locker.LockExclusive(r.namespacesLockPath(), lockTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	doc, err := r.readNamespaces()
	if err != nil {
		return err
	}
	doc.Namespaces[ns.Name] = ns
	return r.writeNamespaces(doc)
}

// ValidateLabels checks invariants I5 (label syntax, via types.LabelValid)
// and I6 (at most one label per namespace flagged unique) against the
// registered namespaces, and reports unknown namespaces.
func (r *Registry) ValidateLabels(labels []string) error {
	doc, err := r.readNamespaces()
	if err != nil {
		return err
	}

	seenUnique := map[string]string{}
	for _, label := range labels {
		if !types.LabelValid(label) {
			return errkind.New(errkind.InvalidArgument, "label %q does not match the required pattern", label)
		}
		nsName := types.LabelNamespaceOf(label)
		def, ok := doc.Namespaces[nsName]
		if !ok {
			return errkind.New(errkind.InvalidArgument, "label %q uses unknown namespace %q", label, nsName)
		}
		if def.Unique {
			if prior, ok := seenUnique[nsName]; ok && prior != label {
				return errkind.New(errkind.InvalidArgument, "namespace %q is unique: both %q and %q present", nsName, prior, label)
			}
			seenUnique[nsName] = label
		}
	}
	return nil
}
