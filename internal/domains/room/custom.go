package room

import (
	"fmt"
	"strings"
)

const (
	customRoomName        = "Custom Session"
	customRoomDescription = "Your personalized AI conversation"
	customRoomGreeting    = "Welcome! Your personalized agents are ready."
)

// CustomAgent is the client-facing shape of one agent in a custom room.
type CustomAgent struct {
	Name   string `json:"name" mapstructure:"name"`
	Prompt string `json:"prompt" mapstructure:"prompt"`
	Voice  string `json:"voice,omitempty" mapstructure:"voice"`
}

// CustomRoomRequest is what a client submits to build an ad hoc room.
type CustomRoomRequest struct {
	Agents          []CustomAgent `json:"agents" mapstructure:"agents"`
	DurationMinutes int           `json:"duration_minutes" mapstructure:"duration_minutes"`
}

// CustomRoomBuilder assembles rooms from client-supplied fields.
type CustomRoomBuilder struct {
	AgentCount       int
	AllowedDurations []int
	Voices           VoicePolicy
}

// Build validates the request and returns a ready-to-run room.
// A zero duration falls back to the first allowed duration.
func (b CustomRoomBuilder) Build(req CustomRoomRequest) (Room, error) {
	if b.AgentCount > 0 && len(req.Agents) != b.AgentCount {
		return Room{}, fmt.Errorf("%w: exactly %d agents required, got %d", ErrInvalidRoom, b.AgentCount, len(req.Agents))
	}
	duration := req.DurationMinutes
	if duration == 0 && len(b.AllowedDurations) > 0 {
		duration = b.AllowedDurations[0]
	}
	if err := ValidateDuration(duration, b.AllowedDurations); err != nil {
		return Room{}, err
	}

	r := Room{
		Name:                   customRoomName,
		Description:            customRoomDescription,
		Greeting:               customRoomGreeting,
		SessionDurationMinutes: duration,
		Agents:                 make([]AgentSpec, 0, len(req.Agents)),
	}
	for i, a := range req.Agents {
		prompt := strings.TrimSpace(a.Prompt)
		if prompt == "" {
			prompt = fmt.Sprintf("You are Agent %d.", i+1)
		}
		voice := strings.TrimSpace(a.Voice)
		if voice == "" {
			voice = b.Voices.Fallback(i)
		}
		r.Agents = append(r.Agents, AgentSpec{
			Name:         a.Name,
			Role:         "custom",
			Personality:  "custom",
			SystemPrompt: prompt,
			Voice:        voice,
		})
	}
	r.Normalize()
	if err := r.Validate(b.AllowedDurations); err != nil {
		return Room{}, err
	}
	return r, nil
}
