package room

import "strings"

// VoicePolicy decides which synthesis voice an agent speaks with.
type VoicePolicy struct {
	Prefix   string
	Defaults []string
}

func NewVoicePolicy(prefix string, defaults []string) VoicePolicy {
	return VoicePolicy{Prefix: prefix, Defaults: defaults}
}

// Resolve returns the agent's declared voice when it carries the required
// prefix, otherwise the default voice for the agent's position.
func (p VoicePolicy) Resolve(agent AgentSpec, index int) string {
	voice := strings.TrimSpace(agent.Voice)
	if voice != "" && strings.HasPrefix(voice, p.Prefix) {
		return voice
	}
	return p.Fallback(index)
}

// Fallback is defaults[index mod len(defaults)].
func (p VoicePolicy) Fallback(index int) string {
	if len(p.Defaults) == 0 {
		return ""
	}
	if index < 0 {
		index = -index
	}
	return p.Defaults[index%len(p.Defaults)]
}
