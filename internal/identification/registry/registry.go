// Package registry builds the configured identification engines.
package registry

import (
	"medialog/internal/config"
	"medialog/internal/identification"
	"medialog/internal/identification/fido"
	"medialog/internal/identification/signature"
	"medialog/internal/identification/sniff"
	"medialog/internal/services"
)

// Set is the constructed engine list in configuration order: signature, sniff, fido.
type Set struct {
	Engines []identification.Engine
	// SignatureVersion is empty when the signature engine is disabled.
	SignatureVersion string
}

// Names lists engine names in order.
func (s Set) Names() []string {
	names := make([]string, len(s.Engines))
	for i, engine := range s.Engines {
		names[i] = engine.Name()
	}
	return names
}

// Build constructs every enabled engine. Any construction failure is fatal and
// carries services.ErrEngineInit.
func Build(cfg *config.Config) (Set, error) {
	var set Set
	if cfg == nil {
		return set, services.Wrap(services.ErrConfiguration, "registry", "build engines", "config is nil", nil)
	}

	if cfg.Engines.Signature.Enabled {
		engine, err := signature.New(cfg.Engines.Signature.Path)
		if err != nil {
			return Set{}, err
		}
		set.Engines = append(set.Engines, engine)
		set.SignatureVersion = engine.Version()
	}
	if cfg.Engines.Sniff.Enabled {
		set.Engines = append(set.Engines, sniff.New())
	}
	if cfg.Engines.Fido.Enabled {
		engine, err := fido.New(cfg.Engines.Fido.Binary, cfg.Engines.Fido.Args, cfg.FidoTimeout())
		if err != nil {
			return Set{}, err
		}
		set.Engines = append(set.Engines, engine)
	}

	if len(set.Engines) == 0 {
		return Set{}, services.Wrap(services.ErrConfiguration, "registry", "build engines", "no engines enabled", nil)
	}
	return set, nil
}
