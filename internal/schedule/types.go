package schedule

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// Document is the schedules file: a daily reset time, the schedule
// table, named time ranges, and the auxiliary value store.
type Document struct {
	Reset     string                  `yaml:"reset"`
	Schedules map[string]ScheduleSpec `yaml:"schedules"`
	Ranges    map[string]RangeSpec    `yaml:"ranges"`
	Values    map[string]any          `yaml:"values"`
}

// ScheduleSpec is one schedule's declaration as written in the file.
type ScheduleSpec struct {
	// On and Off are trigger specifications; either may be empty.
	On  string `yaml:"on,omitempty"`
	Off string `yaml:"off,omitempty"`

	// Delay holds a trigger back for this many consecutive ticks
	// before it may fire.
	Delay int `yaml:"delay,omitempty"`

	// DoNotOverride pins the schedule: manual overrides are refused.
	DoNotOverride bool `yaml:"doNotOverride,omitempty"`
}

// RangeSpec declares a named time range.
type RangeSpec struct {
	Start RangeBound `yaml:"start"`
	End   RangeBound `yaml:"end"`
}

// RangeBound is one edge of a range: either a plain time spec, or a
// device property consulted at evaluation time with a fallback for
// when the device doesn't report it.
//
// YAML forms:
//
//	start: "22:30"
//	start: { device: "therm.night", default: "22:00" }
type RangeBound struct {
	// Spec is a time specification, or a "device.prop" reference when
	// Default is set.
	Spec string

	// Default is the fallback time spec for an unavailable device
	// property. Empty means Spec is consulted directly.
	Default string
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (b *RangeBound) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&b.Spec)
	case yaml.MappingNode:
		var m struct {
			Device  string `yaml:"device"`
			Default string `yaml:"default"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Device == "" {
			return fmt.Errorf("range bound mapping requires a device reference")
		}
		b.Spec = m.Device
		b.Default = m.Default
		return nil
	default:
		return fmt.Errorf("range bound must be a time spec or a device mapping")
	}
}

// MarshalYAML renders the bound back in its short form when possible.
func (b RangeBound) MarshalYAML() (any, error) {
	if b.Default == "" {
		return b.Spec, nil
	}
	return map[string]string{"device": b.Spec, "default": b.Default}, nil
}

// Schedule is a loaded schedule: its declaration plus the compiled
// triggers and the mutable override flag. Compiled expressions are
// immutable; the override flag is guarded by the owning Store.
type Schedule struct {
	Name string
	Spec ScheduleSpec

	onTrigger  trigger.Expr // nil when no "on" spec
	offTrigger trigger.Expr // nil when no "off" spec

	overridden bool
}

// OnTrigger returns the compiled "on" trigger, nil if none declared.
func (s *Schedule) OnTrigger() trigger.Expr { return s.onTrigger }

// OffTrigger returns the compiled "off" trigger, nil if none declared.
func (s *Schedule) OffTrigger() trigger.Expr { return s.offTrigger }

// HasActors reports whether the schedule declares any trigger at all.
func (s *Schedule) HasActors() bool {
	return s.onTrigger != nil || s.offTrigger != nil
}

// ActorListing describes one actor of a schedule for external readers.
type ActorListing struct {
	Spec string `json:"spec"`
	// At is the currently-resolved "HH:MM" time when the spec is a
	// plain time expression; empty for state-driven triggers.
	At string `json:"at,omitempty"`
}

// Listing is the outward-facing view of one schedule.
type Listing struct {
	On            *ActorListing `json:"on,omitempty"`
	Off           *ActorListing `json:"off,omitempty"`
	Delay         int           `json:"delay,omitempty"`
	DoNotOverride bool          `json:"doNotOverride,omitempty"`
	Overridden    bool          `json:"overridden"`
}
