// Package agent defines the agent profile and capability domain entities.
package agent

import (
	"fmt"
	"time"

	"github.com/hivemind-sec/hivemind/internal/domain"
)

// Capability is a named skill an agent can perform. Immutable once created.
type Capability struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Proficiency       float64  `json:"proficiency"` // [0,1]
	Resources         []string `json:"resources,omitempty"`
	EstimatedDuration int      `json:"estimated_duration"` // minutes
	SuccessRate       float64  `json:"success_rate"`       // [0,1]
}

// Profile describes a registered agent: its capabilities, committed load,
// and availability. Load and LastActive are mutated only through the
// coordinator's assignment and completion paths.
type Profile struct {
	ID           string             `json:"id"`
	Role         string             `json:"role"`
	Capabilities []Capability       `json:"capabilities"`
	Load         float64            `json:"load"` // [0,1]
	Available    bool               `json:"available"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	LastActive   time.Time          `json:"last_active"`
}

// Validate checks that the profile is well-formed for registration.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: agent id is required", domain.ErrValidation)
	}
	if p.Role == "" {
		return fmt.Errorf("%w: agent role is required", domain.ErrValidation)
	}
	if len(p.Capabilities) == 0 {
		return fmt.Errorf("%w: agent must declare at least one capability", domain.ErrValidation)
	}
	for i := range p.Capabilities {
		c := &p.Capabilities[i]
		if c.Name == "" {
			return fmt.Errorf("%w: capability %d has no name", domain.ErrValidation, i)
		}
		if c.Proficiency < 0 || c.Proficiency > 1 {
			return fmt.Errorf("%w: capability %q proficiency must be in [0,1]", domain.ErrValidation, c.Name)
		}
		if c.SuccessRate < 0 || c.SuccessRate > 1 {
			return fmt.Errorf("%w: capability %q success_rate must be in [0,1]", domain.ErrValidation, c.Name)
		}
	}
	if p.Load < 0 || p.Load > 1 {
		return fmt.Errorf("%w: load must be in [0,1]", domain.ErrValidation)
	}
	return nil
}

// HasCapabilities reports whether the agent's capabilities are a superset
// of the given required capability names.
func (p *Profile) HasCapabilities(required []string) bool {
	for _, name := range required {
		if !p.hasCapability(name) {
			return false
		}
	}
	return true
}

func (p *Profile) hasCapability(name string) bool {
	for i := range p.Capabilities {
		if p.Capabilities[i].Name == name {
			return true
		}
	}
	return false
}

// AvgProficiency returns the mean proficiency across the given capability
// names. Capabilities the agent does not have count as zero.
func (p *Profile) AvgProficiency(required []string) float64 {
	if len(required) == 0 {
		return 0
	}
	var sum float64
	for _, name := range required {
		for i := range p.Capabilities {
			if p.Capabilities[i].Name == name {
				sum += p.Capabilities[i].Proficiency
				break
			}
		}
	}
	return sum / float64(len(required))
}

// AvgSuccessRate returns the mean success rate across the given capability
// names. Capabilities the agent does not have count as zero.
func (p *Profile) AvgSuccessRate(required []string) float64 {
	if len(required) == 0 {
		return 0
	}
	var sum float64
	for _, name := range required {
		for i := range p.Capabilities {
			if p.Capabilities[i].Name == name {
				sum += p.Capabilities[i].SuccessRate
				break
			}
		}
	}
	return sum / float64(len(required))
}

// Clone returns a deep copy that is safe to read after the coordinator's
// lock is released.
func (p *Profile) Clone() Profile {
	cp := *p
	cp.Capabilities = append([]Capability(nil), p.Capabilities...)
	if p.Metrics != nil {
		cp.Metrics = make(map[string]float64, len(p.Metrics))
		for k, v := range p.Metrics {
			cp.Metrics[k] = v
		}
	}
	return cp
}

// ClampLoad bounds the agent's load to [0,1].
func (p *Profile) ClampLoad() {
	if p.Load < 0 {
		p.Load = 0
	}
	if p.Load > 1 {
		p.Load = 1
	}
}
