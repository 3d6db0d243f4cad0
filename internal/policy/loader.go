package policy

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader reads policy documents from a YAML file and publishes them through
// an atomic pointer. Readers always see either the previous document or the
// new one, never a mix.
type Loader struct {
	path    string
	known   func(string) bool
	logger  *slog.Logger
	current atomic.Pointer[Document]
}

// NewLoader parses and validates the document at path and installs it. The
// known predicate is applied to every transform name on each load.
func NewLoader(path string, known func(string) bool, logger *slog.Logger) (*Loader, error) {
	l := &Loader{path: path, known: known, logger: logger}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Current returns the active document.
func (l *Loader) Current() *Document {
	return l.current.Load()
}

// Reload re-reads the file and swaps the active document. A document that
// fails to parse or validate leaves the current one in place.
func (l *Loader) Reload() error {
	doc, err := Parse(l.path)
	if err != nil {
		return err
	}
	if err := doc.Validate(l.known); err != nil {
		return err
	}

	previous := l.current.Swap(doc)
	if previous != nil && previous.Version != doc.Version {
		l.logger.Info("policy reloaded",
			"path", l.path,
			"previous_version", previous.Version,
			"version", doc.Version,
		)
	}
	return nil
}

// Parse reads a policy document from a YAML file without installing it.
func Parse(path string) (*Document, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading policy %s: %w", path, err)
	}

	var doc Document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling policy %s: %w", path, err)
	}
	return &doc, nil
}
