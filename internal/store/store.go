// Package store keeps the rule set document on disk and publishes the decoded
// configuration to the runtime. The file may be JSON or YAML; edits made by
// hand are picked up by Watch, edits made through Set are written back in the
// file's own format.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/soar/joyctrl/internal/mapping"
	"github.com/soar/joyctrl/internal/watch"
)

// ErrUnknownKey is returned by Set and Value for keys outside the document.
var ErrUnknownKey = errors.New("unknown config key")

// Keys lists the top-level keys of the rules document and the JSON type each
// must hold.
var Keys = map[string]gjson.Type{
	"mappingActiveOnBoot": gjson.True,
	"mappings":            gjson.JSON,
	"deadzone":            gjson.Number,
	"keyboardLayout":      gjson.String,
}

type format uint8

const (
	formatJSON format = iota
	formatYAML
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatJSON
}

// Store is the configuration store.
type Store struct {
	path   string
	format format
	logger *slog.Logger

	mu   sync.Mutex // serializes loads and writes
	doc  []byte     // current document as JSON
	cell *watch.Value[mapping.Config]
}

func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		format: formatOf(path),
		logger: logger.With("component", "store"),
		doc:    []byte("{}"),
		cell:   watch.New(mapping.DefaultConfig()),
	}
}

func (s *Store) Path() string { return s.path }

// Get returns the current configuration.
func (s *Store) Get() mapping.Config { return s.cell.Load() }

// Subscribe returns a receiver woken whenever the decoded configuration
// changes.
func (s *Store) Subscribe() *watch.Receiver[mapping.Config] { return s.cell.Subscribe() }

// Load reads the file and publishes it. A missing file yields the defaults.
// Rules that fail to decode are logged and skipped; only an unreadable or
// unparsable document is an error, in which case the previous configuration
// stays in effect.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no rules file, using defaults", "path", s.path)
		s.applyLocked([]byte("{}"), mapping.DefaultConfig())
		return nil
	}
	if err != nil {
		return fmt.Errorf("read rules: %w", err)
	}

	doc, err := s.toJSON(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if !gjson.ParseBytes(doc).IsObject() {
		return fmt.Errorf("parse %s: rules document must be an object", s.path)
	}
	cfg, err := mapping.DecodeConfig(doc)
	s.reportSkipped(err)
	s.applyLocked(doc, cfg)
	s.logger.Info("rules loaded", "path", s.path, "rules", len(cfg.Mappings))
	return nil
}

func (s *Store) reportSkipped(err error) {
	if err == nil {
		return
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		s.logger.Warn("rule skipped", "reason", err)
		return
	}
	for _, e := range joined.Unwrap() {
		s.logger.Warn("rule skipped", "reason", e)
	}
}

func (s *Store) applyLocked(doc []byte, cfg mapping.Config) {
	s.doc = doc
	s.cell.CompareAndStore(cfg, func(a, b mapping.Config) bool { return reflect.DeepEqual(a, b) })
}

// toJSON converts the file contents to a JSON document.
func (s *Store) toJSON(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("{}"), nil
	}
	if s.format == formatJSON {
		if !gjson.ValidBytes(data) {
			return nil, errors.New("not valid JSON")
		}
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// Document returns the current configuration encoded as JSON.
func (s *Store) Document() ([]byte, error) {
	return json.Marshal(s.Get())
}

// Value returns one top-level key of the current configuration as raw JSON.
func (s *Store) Value(key string) (json.RawMessage, error) {
	if _, ok := Keys[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(gjson.GetBytes(doc, key).Raw), nil
}

// Set replaces one top-level key with value and writes the file. The update is
// rejected, and nothing is written, if value has the wrong type or, for
// mappings, any rule in value does not decode. Rules already skipped at load
// stay in the file and stay skipped.
func (s *Store) Set(key string, value json.RawMessage) error {
	want, ok := Keys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if !gjson.ValidBytes(value) {
		return fmt.Errorf("%s: value is not valid JSON", key)
	}
	if err := checkType(key, want, gjson.ParseBytes(value)); err != nil {
		return err
	}

	if key == "mappings" {
		only, err := sjson.SetRawBytes([]byte("{}"), key, value)
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		if _, err := mapping.DecodeConfig(only); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := sjson.SetRawBytes(bytes.Clone(s.doc), key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	cfg, skipped := mapping.DecodeConfig(doc)
	if err := s.writeLocked(doc); err != nil {
		return err
	}
	s.reportSkipped(skipped)
	s.applyLocked(doc, cfg)
	s.logger.Info("config updated", "key", key)
	return nil
}

func checkType(key string, want gjson.Type, v gjson.Result) error {
	switch want {
	case gjson.True:
		if v.Type == gjson.True || v.Type == gjson.False {
			return nil
		}
	case gjson.JSON:
		if v.IsArray() {
			return nil
		}
	case gjson.String:
		if v.Type == gjson.String || v.Type == gjson.Null {
			return nil
		}
	default:
		if v.Type == want {
			return nil
		}
	}
	return fmt.Errorf("%s: unexpected value %s", key, v.Raw)
}

// writeLocked writes doc in the file's format through a temporary file in the
// same directory, so a reader never sees a partial document.
func (s *Store) writeLocked(doc []byte) error {
	out, err := s.encode(doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return nil
}

func (s *Store) encode(doc []byte) ([]byte, error) {
	if s.format == formatJSON {
		return append([]byte(gjson.GetBytes(doc, "@pretty").Raw), '\n'), nil
	}
	// JSON is YAML: parse into a node tree to keep key order, then drop the
	// flow styles so the file reads as block YAML.
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(gjson.GetBytes(doc, "@pretty").Raw), &node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	blockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
