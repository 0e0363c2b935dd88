package scoring

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "nifty-advisor/internal/errors"
)

// Profile is a named set of scorer weights loaded from YAML:
//
//	name: pcr-heavy
//	weights:
//	  PCR Rule: 0.6
//	  OI Build-up Rule: 0.1
type Profile struct {
	Name    string             `yaml:"name"`
	Weights map[string]float64 `yaml:"weights"`
}

// LoadProfile reads and validates a weight profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "read weight profile %s", path)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, apperrors.Wrapf(err, "weight profile %s", path)
	}
	return p, nil
}

// ParseProfile decodes a weight profile, rejecting unknown fields and negative weights.
func ParseProfile(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(p.Weights) == 0 {
		return nil, apperrors.NewValidationError("weights", nil, "at least one rule weight is required")
	}
	for name, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, apperrors.NewValidationError("weights."+name, w, "weight must be a finite number")
		}
		if w < 0 {
			return nil, apperrors.NewValidationError("weights."+name, w, "weight must not be negative")
		}
	}
	return &p, nil
}

// Scorer builds a scorer from the profile's weights.
func (p *Profile) Scorer() *Scorer {
	return NewScorerWithWeights(p.Weights)
}
