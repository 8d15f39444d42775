package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

// DefaultPersonas are written to disk when no persona file exists yet.
func DefaultPersonas() []model.Persona {
	return []model.Persona{
		{Name: "Alice", Personality: "Curious and analytical AI", Age: 1, Gender: "female"},
		{Name: "Bob", Personality: "Creative and slightly eccentric AI", Age: 1, Gender: "male"},
	}
}

// PersonaStore holds the personas loaded from one file, in file order.
type PersonaStore struct {
	path     string
	personas []model.Persona
	byName   map[string]int
}

type personaFile struct {
	Personas []model.Persona `yaml:"personas" json:"personas"`
}

// LoadPersonas reads path. The file may hold a bare list of records or a
// mapping with a "personas" key; a ".json" extension selects JSON, anything
// else is read as YAML. A missing file is created with DefaultPersonas.
func LoadPersonas(path string) (*PersonaStore, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("Persona file not found, writing defaults")
		store, err := newPersonaStore(path, DefaultPersonas())
		if err != nil {
			return nil, err
		}
		return store, store.Save()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read persona file")
	}

	personas, err := decodePersonas(data, isJSON(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse persona file %s", path)
	}

	return newPersonaStore(path, personas)
}

func decodePersonas(data []byte, asJSON bool) ([]model.Persona, error) {
	unmarshal := yaml.Unmarshal
	if asJSON {
		unmarshal = json.Unmarshal
	}

	var list []model.Persona
	listErr := unmarshal(data, &list)
	if listErr == nil {
		return list, nil
	}

	var wrapped personaFile
	if err := unmarshal(data, &wrapped); err != nil {
		return nil, listErr
	}
	if wrapped.Personas == nil {
		return nil, errors.New(`expected a list of personas or a "personas" key`)
	}
	return wrapped.Personas, nil
}

func newPersonaStore(path string, personas []model.Persona) (*PersonaStore, error) {
	if len(personas) == 0 {
		return nil, errors.New("persona file contains no personas")
	}

	store := &PersonaStore{
		path:     path,
		personas: personas,
		byName:   make(map[string]int, len(personas)),
	}
	for i, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "persona #%d", i+1)
		}
		key := strings.ToLower(p.Name)
		if _, dup := store.byName[key]; dup {
			return nil, fmt.Errorf("duplicate persona name %q", p.Name)
		}
		store.byName[key] = i
	}

	return store, nil
}

// Get looks a persona up by name, ignoring case. Unknown names get an error
// listing the closest matches.
func (s *PersonaStore) Get(name string) (model.Persona, error) {
	if i, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s.personas[i], nil
	}

	matches := fuzzy.Find(name, s.Names())
	if len(matches) == 0 {
		return model.Persona{}, fmt.Errorf("unknown persona %q (available: %s)", name, strings.Join(s.Names(), ", "))
	}

	suggestions := make([]string, 0, 3)
	for _, m := range matches {
		suggestions = append(suggestions, m.Str)
		if len(suggestions) == cap(suggestions) {
			break
		}
	}
	return model.Persona{}, fmt.Errorf("unknown persona %q (did you mean %s?)", name, strings.Join(suggestions, ", "))
}

// Names returns persona names in file order.
func (s *PersonaStore) Names() []string {
	names := make([]string, len(s.personas))
	for i, p := range s.personas {
		names[i] = p.Name
	}
	return names
}

func (s *PersonaStore) All() []model.Persona {
	return append([]model.Persona(nil), s.personas...)
}

func (s *PersonaStore) Path() string {
	return s.path
}

// Save writes the personas back in the format implied by the file extension.
func (s *PersonaStore) Save() error {
	var data []byte
	var err error
	if isJSON(s.path) {
		data, err = json.MarshalIndent(personaFile{Personas: s.personas}, "", "  ")
	} else {
		data, err = yaml.Marshal(personaFile{Personas: s.personas})
	}
	if err != nil {
		return errors.Wrap(err, "failed to encode personas")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create persona directory")
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write persona file")
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
