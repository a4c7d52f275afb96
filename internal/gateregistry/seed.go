package gateregistry

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

// SeedFileName is an optional, human-maintained YAML document listing the
// gates and label namespaces a repository wants pre-registered the first
// time jit touches it, committed to version control rather than
// generated (unlike gates.json/label-namespaces.json, which are written
// back on every PutGate/PutNamespace). Grounded on the teacher's
// cmd/bd/autoimport.go, which reads a repository-committed config.yaml
// via gopkg.in/yaml.v3 into a small decode-only struct alongside the
// tool's otherwise-JSON state.
const SeedFileName = "jit-seed.yaml"

// seedGate and seedNamespace mirror types.GateDefinition/LabelNamespace
// with explicit yaml tags, kept separate from the JSON-tagged core types
// so the wire format used by gates.json/label-namespaces.json stays
// independent of the seed file's hand-written YAML conventions.
type seedGate struct {
	Key         string          `yaml:"key"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Stage       types.Stage     `yaml:"stage"`
	Mode        types.Mode      `yaml:"mode"`
	Checker     *seedChecker    `yaml:"checker"`
}

type seedChecker struct {
	Command        string            `yaml:"command"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	WorkingDir     string            `yaml:"working_dir"`
	Env            map[string]string `yaml:"env"`
}

type seedNamespace struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Unique      bool   `yaml:"unique"`
	Strategic   bool   `yaml:"strategic"`
}

// Seed is the decoded shape of jit-seed.yaml.
type Seed struct {
	Gates      []seedGate      `yaml:"gates"`
	Namespaces []seedNamespace `yaml:"namespaces"`
}

// LoadSeed reads and parses a seed file. A missing file yields a zero
// Seed and no error, so callers can unconditionally attempt a seed on
// first run.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Seed{}, nil
		}
		return Seed{}, errkind.Wrap(errkind.IO, err, "read %s", path)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, errkind.Wrap(errkind.Corruption, err, "parse %s", path)
	}
	return seed, nil
}

// ApplySeed registers every gate and namespace in seed that isn't already
// present, leaving existing entries untouched. It is safe to call on
// every Open: already-seeded repositories are a no-op.
func (r *Registry) ApplySeed(seed Seed) error {
	for _, sg := range seed.Gates {
		if _, err := r.Gate(sg.Key); err == nil {
			continue
		}
		def := &types.GateDefinition{
			Key:         sg.Key,
			Title:       sg.Title,
			Description: sg.Description,
			Stage:       sg.Stage,
			Mode:        sg.Mode,
		}
		if sg.Checker != nil {
			def.Checker = &types.Checker{
				Command:        sg.Checker.Command,
				TimeoutSeconds: sg.Checker.TimeoutSeconds,
				WorkingDir:     sg.Checker.WorkingDir,
				Env:            sg.Checker.Env,
			}
		}
		if err := def.Validate(); err != nil {
			return errkind.Wrap(errkind.InvalidArgument, err, "seed gate %q", sg.Key)
		}
		if err := r.PutGate(def); err != nil {
			return err
		}
	}
	for _, sn := range seed.Namespaces {
		if _, err := r.Namespace(sn.Name); err == nil {
			continue
		}
		ns := &types.LabelNamespace{
			Name:        sn.Name,
			Description: sn.Description,
			Unique:      sn.Unique,
			Strategic:   sn.Strategic,
		}
		if err := r.PutNamespace(ns); err != nil {
			return err
		}
	}
	return nil
}
