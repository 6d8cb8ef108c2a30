package s4_committee

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/s5_validate"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// DefaultConcurrency bounds concurrent agent requests
const DefaultConcurrency = 3

// TraceEvent is the JSONL event name of every agent attempt
const TraceEvent = "llm_agent_response"

// Panel is the opinion set of one run
type Panel struct {
	Stances   []contracts.Stance    `json:"stances"`
	Fallbacks []contracts.AgentName `json:"fallbacks,omitempty"`
}

// Generator produces one stance per agent for a snapshot
type Generator interface {
	Generate(ctx context.Context, snap *contracts.Snapshot) Panel
}

// RulesGenerator answers every agent with its rule stub
type RulesGenerator struct {
	stubs *Stubs
}

// NewRulesGenerator creates the offline generator
func NewRulesGenerator(stubs *Stubs) *RulesGenerator {
	return &RulesGenerator{stubs: stubs}
}

// Generate implements Generator
func (g *RulesGenerator) Generate(_ context.Context, snap *contracts.Snapshot) Panel {
	return Panel{Stances: g.stubs.All(snap)}
}

// ChatClient is the chat completions capability the LLM generator needs
type ChatClient interface {
	ChatJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// LLMGenerator asks a chat model for each agent's stance and falls back to the
// rule stub whenever every candidate model fails or returns an invalid stance.
// ⭐ SSOT: S4 LLM 의견 생성 (실패 시 규칙 스텁)
type LLMGenerator struct {
	client      ChatClient
	models      []string
	stubs       *Stubs
	trace       *Trace
	guards      *s5_validate.Guards
	logger      *logger.Logger
	timeout     time.Duration
	concurrency int
}

// NewLLMGenerator creates a generator trying models in order
func NewLLMGenerator(client ChatClient, models []string, stubs *Stubs, trace *Trace, log *logger.Logger) *LLMGenerator {
	return &LLMGenerator{
		client:      client,
		models:      models,
		stubs:       stubs,
		trace:       trace,
		guards:      s5_validate.DefaultGuards(),
		logger:      log.WithComponent("s4_committee").WithField("stage", contracts.StageCommittee.String()),
		concurrency: DefaultConcurrency,
	}
}

// WithGuards replaces the output guards applied to model responses
func (g *LLMGenerator) WithGuards(guards *s5_validate.Guards) *LLMGenerator {
	if guards != nil {
		g.guards = guards
	}
	return g
}

// WithTimeout bounds each model attempt
func (g *LLMGenerator) WithTimeout(d time.Duration) *LLMGenerator {
	g.timeout = d
	return g
}

// Generate implements Generator. Never fails: each agent yields a model or stub stance.
func (g *LLMGenerator) Generate(ctx context.Context, snap *contracts.Snapshot) Panel {
	agents := contracts.AllAgents()
	stances := make([]contracts.Stance, len(agents))
	fellBack := make([]bool, len(agents))

	userPrompt, promptErr := UserPrompt(snap)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	var mu sync.Mutex
	for i, agent := range agents {
		i, agent := i, agent
		eg.Go(func() error {
			st, fallback := g.stanceFor(egCtx, agent, snap, userPrompt, promptErr)
			mu.Lock()
			stances[i], fellBack[i] = st, fallback
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	panel := Panel{Stances: stances}
	for i, fb := range fellBack {
		if fb {
			panel.Fallbacks = append(panel.Fallbacks, agents[i])
		}
	}

	g.logger.WithFields(map[string]interface{}{
		"stances":   len(stances),
		"fallbacks": len(panel.Fallbacks),
	}).Info("Committee opinions generated")

	return panel
}

type attemptError struct {
	Model string `json:"model,omitempty"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

func (g *LLMGenerator) stanceFor(ctx context.Context, agent contracts.AgentName, snap *contracts.Snapshot, userPrompt string, promptErr error) (contracts.Stance, bool) {
	systemPrompt := SystemPrompt(agent, snap)

	var errs []attemptError
	if promptErr != nil {
		errs = append(errs, attemptError{Stage: "prepare", Error: promptErr.Error()})
	} else if len(g.models) == 0 {
		errs = append(errs, attemptError{Stage: "prepare", Error: "no model candidates"})
	} else {
		for _, model := range g.models {
			text, err := g.ask(ctx, model, systemPrompt, userPrompt)
			if err == nil {
				var st contracts.Stance
				st, err = ParseStance(text, agent, snap.Watchlist, g.guards)
				if err == nil {
					st.RawResponse = text
					g.traceLog(map[string]interface{}{
						"agent":         agent,
						"model":         model,
						"system_prompt": systemPrompt,
						"user_prompt":   userPrompt,
						"raw_response":  text,
						"parsed":        st,
						"fallback_used": false,
					})
					return st, false
				}
			}
			g.logger.WithError(err).WithFields(map[string]interface{}{
				"agent": agent,
				"model": model,
			}).Warn("Model attempt failed")
			errs = append(errs, attemptError{Model: model, Error: truncate(err.Error(), 300)})
		}
	}

	fallback := g.stubs.Stance(agent, snap)
	g.traceLog(map[string]interface{}{
		"agent":           agent,
		"errors":          errs,
		"fallback_used":   true,
		"fallback_stance": fallback,
	})
	return fallback, true
}

func (g *LLMGenerator) ask(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.client.ChatJSON(ctx, model, systemPrompt, userPrompt)
}

func (g *LLMGenerator) traceLog(payload map[string]interface{}) {
	if err := g.trace.Log(TraceEvent, payload); err != nil {
		g.logger.WithError(err).Warn("Trace write failed")
	}
}

// ParseStance decodes a model response into a stance for agent.
// The agent name is forced, then the stance must pass schema, evidence,
// forbidden-phrase and ticker checks.
func ParseStance(text string, agent contracts.AgentName, watchlist []string, guards *s5_validate.Guards) (contracts.Stance, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return contracts.Stance{}, fmt.Errorf("response is not a JSON object: %w", err)
	}
	name, _ := json.Marshal(agent)
	raw["agent_name"] = name
	delete(raw, "raw_response")

	forced, err := json.Marshal(raw)
	if err != nil {
		return contracts.Stance{}, fmt.Errorf("re-encode response: %w", err)
	}

	var st contracts.Stance
	if err := json.Unmarshal(forced, &st); err != nil {
		return contracts.Stance{}, fmt.Errorf("decode stance: %w", err)
	}

	if err := s5_validate.Stance(st); err != nil {
		return contracts.Stance{}, err
	}
	texts := s5_validate.GeneratedTexts([]contracts.Stance{st}, contracts.CommitteeResult{})
	if err := guards.ForbiddenPhrases(texts); err != nil {
		return contracts.Stance{}, err
	}
	if err := guards.Tickers(texts, watchlist); err != nil {
		return contracts.Stance{}, err
	}
	return st, nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
