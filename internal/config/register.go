package config

import (
	"fmt"
	"os"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/manager"
	"github.com/roach88/revstore/internal/schema"
)

// Document is the payload type of configured models. They have no Go type,
// so payloads stay decoded JSON objects.
type Document = map[string]any

// Managers maps model names to their managers.
type Managers map[string]*manager.ResourceManager[Document]

// Register registers every configured model on e.
func (c *Config) Register(e *manager.Engine) (Managers, error) {
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	out := Managers{}
	for _, m := range c.Models {
		opts, err := m.Options(cd)
		if err != nil {
			return nil, err
		}
		rm, err := manager.Register[Document](e, opts...)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", m.Name, err)
		}
		out[m.Name] = rm
	}
	return out, nil
}

// Options translates the declaration into registration options. A CUE
// schema is compiled here.
func (m Model) Options(cd codec.Codec) ([]manager.ModelOption, error) {
	opts := []manager.ModelOption{
		manager.WithName(m.Name),
		manager.WithCodec(cd),
		manager.WithIndexed(m.Indexed...),
	}

	var validator schema.Validator
	if m.CUE != nil {
		src, err := os.ReadFile(m.CUE.File)
		if err != nil {
			return nil, fmt.Errorf("model %s: read CUE schema: %w", m.Name, err)
		}
		v, err := schema.NewCUEValidator(string(src), m.CUE.Definition)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		validator = v
	}

	if m.SchemaVersion != "" {
		s := schema.New(m.SchemaVersion)
		if validator != nil {
			s.WithValidator(validator)
		}
		opts = append(opts, manager.WithSchema(s))
	} else if validator != nil {
		opts = append(opts, manager.WithValidator(validator))
	}
	return opts, nil
}
