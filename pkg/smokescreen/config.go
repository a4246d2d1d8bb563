package smokescreen

import (
	"fmt"

	"github.com/conduit-lang/smokescreen/internal/engine"
	"github.com/conduit-lang/smokescreen/internal/transformer"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

// DefaultIncludeKey is the request key includes are read from
const DefaultIncludeKey = "include"

// Config holds the recognized options
type Config struct {
	// Namespace prefixes conventional transformer identifiers
	Namespace string
	// NameTemplate derives a transformer name from a model name through
	// its {ModelName} placeholder
	NameTemplate string
	// IncludeKey is the request key includes are read from
	IncludeKey string
	// DefaultSerializer is a transform.Serializer, the name of a built-in
	// serializer ("default", "data"), or nil for the default serializer
	DefaultSerializer any
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	naming := transformer.DefaultNaming()
	return Config{
		Namespace:    naming.Namespace,
		NameTemplate: naming.NameTemplate,
		IncludeKey:   DefaultIncludeKey,
	}
}

// Naming returns the transformer naming of the configuration
func (c Config) Naming() transformer.Naming {
	return transformer.Naming{Namespace: c.Namespace, NameTemplate: c.NameTemplate}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if err := c.Naming().Validate(); err != nil {
		return err
	}
	_, err := c.serializer()
	return err
}

func (c Config) serializer() (transform.Serializer, error) {
	switch s := c.DefaultSerializer.(type) {
	case nil:
		return engine.DefaultSerializer{}, nil
	case string:
		return engine.SerializerByName(s)
	case transform.Serializer:
		return s, nil
	default:
		return nil, fmt.Errorf("default serializer must be a serializer or a serializer name, got %T", s)
	}
}
