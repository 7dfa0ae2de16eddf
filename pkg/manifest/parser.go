package manifest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// validate is the shared validator instance for manifest structs.
var validate = validator.New(validator.WithRequiredStructEnabled())

// document is the envelope every manifest shares; the spec node is decoded
// again into the kind-specific type.
type document struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       yaml.Node `yaml:"spec"`
}

// Parser turns YAML documents into typed resource objects.
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a parser that logs skipped documents to the given logger.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "manifest-parser").Logger()}
}

// Parse reads a multi-document YAML stream and returns the typed objects it
// contains. Documents with an unsupported kind are skipped with a warning;
// malformed documents and validation failures are errors.
func (p *Parser) Parse(r io.Reader) ([]Object, error) {
	dec := yaml.NewDecoder(r)
	var objects []Object
	for {
		var doc document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		if doc.Kind == "" {
			// Empty document (e.g. a stream of only separators).
			continue
		}
		kind := Kind(doc.Kind)
		if err := kind.Validate(); err != nil {
			p.logger.Warn().Str("kind", doc.Kind).Str("name", doc.Metadata.Name).
				Msg("Skipping document with unsupported kind")
			continue
		}
		obj, err := p.decodeObject(kind, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s %s/%s: %w",
				doc.Kind, doc.Metadata.Namespace, doc.Metadata.Name, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// ParseFile parses a single manifest file.
func (p *Parser) ParseFile(path string) ([]Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()

	objects, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return objects, nil
}

// ParseDir walks a directory tree and parses every .yaml/.yml file found.
func (p *Parser) ParseDir(root string) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories (e.g. .git) are not manifest input.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		objs, err := p.ParseFile(path)
		if err != nil {
			return err
		}
		objects = append(objects, objs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug().Int("objects", len(objects)).Str("path", root).Msg("Parsed manifest directory")
	return objects, nil
}

func (p *Parser) decodeObject(kind Kind, doc document) (Object, error) {
	if doc.Metadata.Name == "" {
		return nil, fmt.Errorf("metadata.name is required")
	}
	if doc.Metadata.Namespace == "" {
		doc.Metadata.Namespace = "default"
	}

	var obj Object
	switch kind {
	case KindGitRepository:
		o := &GitRepository{Meta: doc.Metadata}
		if err := decodeSpec(doc.Spec, o); err != nil {
			return nil, err
		}
		obj = o
	case KindOCIRepository:
		o := &OCIRepository{Meta: doc.Metadata}
		if err := decodeSpec(doc.Spec, o); err != nil {
			return nil, err
		}
		obj = o
	case KindHelmRepository:
		o := &HelmRepository{Meta: doc.Metadata}
		if err := decodeSpec(doc.Spec, o); err != nil {
			return nil, err
		}
		obj = o
	case KindHelmRelease:
		o := &HelmRelease{Meta: doc.Metadata}
		if err := decodeSpec(doc.Spec, o); err != nil {
			return nil, err
		}
		obj = o
	case KindKustomization:
		o := &Kustomization{Meta: doc.Metadata}
		if err := decodeSpec(doc.Spec, o); err != nil {
			return nil, err
		}
		obj = o
	default:
		return nil, fmt.Errorf("unsupported kind: %s", kind)
	}

	if err := validate.Struct(obj); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	return obj, nil
}

func decodeSpec(spec yaml.Node, into any) error {
	if spec.Kind == 0 {
		return fmt.Errorf("spec is required")
	}
	if err := spec.Decode(into); err != nil {
		return fmt.Errorf("failed to decode spec: %w", err)
	}
	return nil
}
