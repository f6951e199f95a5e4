package room

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	DefaultGreeting    = "Hello! How can I help?"
	DefaultTemperature = 0.7
)

var (
	ErrInvalidRoom     = errors.New("invalid room")
	ErrInvalidDuration = errors.New("invalid session duration")
	ErrRoomNotFound    = errors.New("room not found")
)

// AgentSpec configures one persona taking part in every turn of a room.
type AgentSpec struct {
	Name         string `json:"name" mapstructure:"name"`
	Role         string `json:"role,omitempty" mapstructure:"role"`
	Personality  string `json:"personality,omitempty" mapstructure:"personality"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
	// Temperature is nil when the room left it out; an explicit 0 is kept.
	Temperature *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	Voice       string   `json:"voice,omitempty" mapstructure:"voice"`
}

// Temp returns a pointer to v for AgentSpec.Temperature.
func Temp(v float64) *float64 { return &v }

// SamplingTemperature is the temperature sent with every completion for this agent.
func (a AgentSpec) SamplingTemperature() float64 {
	if a.Temperature == nil {
		return DefaultTemperature
	}
	return *a.Temperature
}

// Room is a named scenario with an ordered set of agents.
type Room struct {
	Name                   string      `json:"name" mapstructure:"name"`
	Description            string      `json:"description" mapstructure:"description"`
	Greeting               string      `json:"greeting" mapstructure:"greeting"`
	SessionDurationMinutes int         `json:"session_duration_minutes" mapstructure:"session_duration_minutes"`
	Agents                 []AgentSpec `json:"agents" mapstructure:"agents"`
}

// Normalize fills in defaults for optional fields. The receiver is modified in place.
func (r *Room) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if strings.TrimSpace(r.Greeting) == "" {
		r.Greeting = DefaultGreeting
	}
	for i := range r.Agents {
		a := &r.Agents[i]
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			a.Name = fmt.Sprintf("Agent %d", i+1)
		}
		if a.Temperature == nil {
			a.Temperature = Temp(DefaultTemperature)
		}
	}
}

// Validate rejects rooms a session could not run.
func (r Room) Validate(allowedDurations []int) error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRoom)
	}
	if len(r.Agents) == 0 {
		return fmt.Errorf("%w: room %q has no agents", ErrInvalidRoom, r.Name)
	}
	seen := make(map[string]struct{}, len(r.Agents))
	for _, a := range r.Agents {
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: duplicate agent name %q in room %q", ErrInvalidRoom, a.Name, r.Name)
		}
		seen[a.Name] = struct{}{}
		if t := a.SamplingTemperature(); t < 0 || t > 2 {
			return fmt.Errorf("%w: agent %q temperature %.2f out of range", ErrInvalidRoom, a.Name, t)
		}
	}
	return ValidateDuration(r.SessionDurationMinutes, allowedDurations)
}

// ValidateDuration checks minutes against the allowed set.
func ValidateDuration(minutes int, allowed []int) error {
	if !slices.Contains(allowed, minutes) {
		return fmt.Errorf("%w: %d minutes, must be one of %v", ErrInvalidDuration, minutes, allowed)
	}
	return nil
}

// AgentVoice pairs an agent with its resolved voice for client acknowledgements.
type AgentVoice struct {
	Name  string `json:"name"`
	Voice string `json:"voice"`
}

// Voices resolves every agent's voice in order.
func (r Room) Voices(p VoicePolicy) []AgentVoice {
	out := make([]AgentVoice, len(r.Agents))
	for i, a := range r.Agents {
		out[i] = AgentVoice{Name: a.Name, Voice: p.Resolve(a, i)}
	}
	return out
}

// WithResolvedVoices returns a copy of the room whose agents carry their effective voice.
func (r Room) WithResolvedVoices(p VoicePolicy) Room {
	agents := make([]AgentSpec, len(r.Agents))
	for i, a := range r.Agents {
		a.Voice = p.Resolve(a, i)
		agents[i] = a
	}
	r.Agents = agents
	return r
}
