package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
	"github.com/xpanvictor/aura/pkg/io/tts"
)

const (
	DefaultContextWindow = 6
	DefaultMaxTokens     = 200
)

// Hooks let the owning session observe a turn without the pipeline knowing about sessions.
type Hooks struct {
	Log       func(role, content, agentName string)
	Remaining func() int
}

func (h Hooks) log(role, content, agentName string) {
	if h.Log != nil {
		h.Log(role, content, agentName)
	}
}

func (h Hooks) remaining() int {
	if h.Remaining != nil {
		return h.Remaining()
	}
	return 0
}

// AgentObserver is told how each agent turn went.
type AgentObserver interface {
	ObserveAgentTurn(agent string, fallback, audio bool, took time.Duration)
}

type PipelineConfig struct {
	ContextWindow int
	MaxTokens     int
	Voices        room.VoicePolicy
}

// Pipeline runs one user utterance through every agent of a room in order, emitting each
// agent's result as soon as it is ready.
type Pipeline struct {
	chat     assistant.Chatter
	tts      tts.Synthesizer
	cfg      PipelineConfig
	observer AgentObserver
	logger   *Logger.Logger
}

func NewPipeline(chat assistant.Chatter, synth tts.Synthesizer, cfg PipelineConfig, logger *Logger.Logger) *Pipeline {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &Pipeline{chat: chat, tts: synth, cfg: cfg, logger: logger.Named("pipeline")}
}

func (p *Pipeline) WithObserver(o AgentObserver) *Pipeline {
	p.observer = o
	return p
}

// FallbackText is spoken when an agent's completion fails.
func FallbackText(agentName string) string {
	return fmt.Sprintf("I'm %s. I'm here to help you with that.", agentName)
}

type agentReply struct {
	name string
	text string
}

// Run processes one turn. Chat and synthesis failures degrade per agent and never abort the turn.
// If ctx is cancelled or an emit fails, Run stops before the next agent, leaves tc untouched
// and returns the error together with the results emitted so far.
func (p *Pipeline) Run(
	ctx context.Context,
	userText string,
	agents []room.AgentSpec,
	tc *TurnContext,
	emit Emitter,
	hooks Hooks,
) ([]AgentTurnResult, error) {
	results := make([]AgentTurnResult, 0, len(agents))
	replies := make([]agentReply, 0, len(agents))

	for i, agent := range agents {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		started := time.Now()

		if err := emit.Emit(ctx, EventAgentStatus, AgentStatus{
			Agent:   agent.Name,
			Status:  AgentThinking,
			Message: fmt.Sprintf("%s is thinking...", agent.Name),
		}); err != nil {
			return results, err
		}

		prompt := p.buildPrompt(agent, userText, replies, tc)
		text, err := p.chat.Chat(ctx, prompt, agent.SamplingTemperature(), p.cfg.MaxTokens)
		fallback := false
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			p.logger.Warnf("agent %s completion failed, using fallback: %v", agent.Name, err)
			text = FallbackText(agent.Name)
			fallback = true
		}
		replies = append(replies, agentReply{name: agent.Name, text: text})
		hooks.log(string(assistant.ASSISTANT), text, agent.Name)

		voice := p.cfg.Voices.Resolve(agent, i)
		if err := emit.Emit(ctx, EventAgentStatus, AgentStatus{
			Agent:   agent.Name,
			Status:  AgentSpeaking,
			Message: fmt.Sprintf("%s is speaking...", agent.Name),
		}); err != nil {
			return results, err
		}

		result := AgentTurnResult{
			AgentName:   agent.Name,
			Text:        text,
			Voice:       voice,
			Ordinal:     i,
			TotalAgents: len(agents),
			Fallback:    fallback,
		}
		audio, err := p.tts.Synthesize(ctx, text, voice)
		switch {
		case err != nil && ctx.Err() != nil:
			return results, ctx.Err()
		case err != nil:
			p.logger.Warnf("agent %s synthesis with %s failed, sending text only: %v", agent.Name, voice, err)
		default:
			result.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
		}
		result.RemainingSeconds = hooks.remaining()

		if err := emit.Emit(ctx, EventAgentResponse, result); err != nil {
			return results, err
		}
		results = append(results, result)

		if p.observer != nil {
			p.observer.ObserveAgentTurn(agent.Name, fallback, result.HasAudio(), time.Since(started))
		}
	}

	texts := make([]string, len(replies))
	for i, r := range replies {
		texts[i] = r.text
	}
	tc.CommitTurn(userText, strings.Join(texts, " "))
	return results, nil
}

func (p *Pipeline) buildPrompt(agent room.AgentSpec, userText string, previous []agentReply, tc *TurnContext) []Message {
	window := tc.Window(p.cfg.ContextWindow)
	msgs := make([]Message, 0, len(window)+2)
	msgs = append(msgs, Message{Role: assistant.SYSTEM, Content: agent.SystemPrompt})
	msgs = append(msgs, window...)
	msgs = append(msgs, Message{Role: assistant.USER, Content: compositeMessage(userText, previous)})
	return msgs
}

// compositeMessage is the user message an agent sees: the raw text for the first agent,
// then the text followed by every earlier reply of this turn.
func compositeMessage(userText string, previous []agentReply) string {
	if len(previous) == 0 {
		return userText
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "User: %s\n\nPrevious responses:\n", userText)
	for _, r := range previous {
		fmt.Fprintf(&sb, "%s: %s\n", r.name, r.text)
	}
	return sb.String()
}
