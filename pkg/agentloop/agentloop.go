// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agentloop implements the gateway's reason-act agent: an
// iterative loop that prompts the LLM for either a tool call or a
// final answer, parses the response with a single strict-grammar
// parser, executes tools through the registry, and feeds observations
// back into the conversation history until the LLM produces a final
// answer or the step cap is reached.
package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/observability"
	"github.com/kadirpekel/docgateway/pkg/tokenizer"
	"github.com/kadirpekel/docgateway/pkg/tools"
)

var tracer = observability.GetTracer("docgateway.agentloop")

const defaultMaxSteps = 5

// StepKind tags one entry in a run's trace.
type StepKind string

const (
	StepToolCall StepKind = "tool_call"
	StepFinal    StepKind = "final"
	StepError    StepKind = "error"
)

// Step is one tagged record in an agent run's trace.
type Step struct {
	Kind      StepKind
	Thought   string
	ToolName  string
	ToolInput map[string]any
	Result    string
	Content   string
	Message   string
}

// Result is what one run() call returns.
type Result struct {
	FinalAnswer string
	Trace       []Step
	ToolsUsed   []string
	Iterations  int
	Capped      bool
}

// Config configures an Agent.
type Config struct {
	Model       string
	MaxSteps    int
	Temperature float64
	HistoryBudgetTokens int
}

func (c *Config) setDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.HistoryBudgetTokens <= 0 {
		c.HistoryBudgetTokens = 4000
	}
}

// Agent runs the reason-act loop against one tool registry and LLM
// client. Its conversation history persists across Run calls until
// Reset clears it — the same instance backs repeated turns in one
// session.
type Agent struct {
	cfg      Config
	llm      *llmclient.Client
	registry *tools.Registry
	counter  *tokenizer.Counter
	metrics  *observability.Metrics

	history []tokenizer.Turn
}

// New builds an Agent. counter may be nil, in which case history is
// never trimmed by token budget (only ever grows within one process
// lifetime, bounded by max_steps per run).
func New(cfg Config, llm *llmclient.Client, registry *tools.Registry, counter *tokenizer.Counter, metrics *observability.Metrics) *Agent {
	cfg.setDefaults()
	return &Agent{cfg: cfg, llm: llm, registry: registry, counter: counter, metrics: metrics}
}

// ToolDescriptors exposes the agent's registered tools for the admin
// surface's tools-listing endpoint.
func (a *Agent) ToolDescriptors() []*tools.Descriptor {
	return a.registry.Descriptors()
}

// Reset clears the agent's conversation history.
func (a *Agent) Reset() {
	a.history = nil
}

// Run executes the reason-act loop for one user message.
func (a *Agent) Run(ctx context.Context, userMessage string) (Result, error) {
	start := time.Now()
	a.history = append(a.history, tokenizer.Turn{Role: "user", Content: userMessage})
	if a.counter != nil {
		a.history = a.counter.FitWithinBudget(a.history, a.cfg.HistoryBudgetTokens)
	}

	var trace []Step
	toolsUsed := map[string]bool{}
	unparseableStreak := 0
	lastResponse := ""

	for iteration := 1; iteration <= a.cfg.MaxSteps; iteration++ {
		result, done, err := func() (Result, bool, error) {
			stepCtx, span := tracer.Start(ctx, "agent.step", trace.WithAttributes(attribute.Int("agent.iteration", iteration)))
			defer span.End()

			prompt := a.buildPrompt(unparseableStreak > 0)

			raw, err := a.llm.Generate(stepCtx, a.cfg.Model, prompt, llmclient.Options{Temperature: a.cfg.Temperature})
			if err != nil {
				a.recordRun(false, time.Since(start), iteration, false)
				span.SetStatus(codes.Error, err.Error())
				return Result{}, true, err
			}
			lastResponse = raw

			parsed, perr := parseResponse(raw)
			if perr != nil {
				unparseableStreak++
				trace = append(trace, Step{Kind: StepError, Message: perr.Error()})
				a.history = append(a.history, tokenizer.Turn{Role: "assistant", Content: raw})
				span.SetStatus(codes.Error, perr.Error())

				if unparseableStreak >= 2 {
					slog.Warn("agentloop: giving up after repeated unparseable responses", "iterations", iteration)
					a.recordRun(len(toolsUsed) > 0, time.Since(start), iteration, false)
					return Result{
						FinalAnswer: bestEffortAnswer(raw),
						Trace:       append(trace, Step{Kind: StepFinal, Content: bestEffortAnswer(raw)}),
						ToolsUsed:   toolNames(toolsUsed),
						Iterations:  iteration,
					}, true, nil
				}
				return Result{}, false, nil
			}
			unparseableStreak = 0

			if parsed.isFinal {
				trace = append(trace, Step{Kind: StepFinal, Content: parsed.finalAnswer})
				a.history = append(a.history, tokenizer.Turn{Role: "assistant", Content: raw})
				a.recordRun(len(toolsUsed) > 0, time.Since(start), iteration, false)
				span.SetStatus(codes.Ok, "")
				return Result{
					FinalAnswer: parsed.finalAnswer,
					Trace:       trace,
					ToolsUsed:   toolNames(toolsUsed),
					Iterations:  iteration,
				}, true, nil
			}

			span.SetAttributes(attribute.String("agent.tool_name", parsed.toolName))
			toolsUsed[parsed.toolName] = true
			toolStart := time.Now()
			observation := a.registry.Execute(stepCtx, parsed.toolName, parsed.toolInput)
			a.metrics.RecordToolCall(parsed.toolName, time.Since(toolStart))

			trace = append(trace, Step{
				Kind:      StepToolCall,
				Thought:   parsed.thought,
				ToolName:  parsed.toolName,
				ToolInput: parsed.toolInput,
				Result:    observation,
			})

			a.history = append(a.history, tokenizer.Turn{Role: "assistant", Content: raw})
			a.history = append(a.history, tokenizer.Turn{Role: "tool", Content: fmt.Sprintf("Observation: %s", observation)})
			if a.counter != nil {
				a.history = a.counter.FitWithinBudget(a.history, a.cfg.HistoryBudgetTokens)
			}
			span.SetStatus(codes.Ok, "")
			return Result{}, false, nil
		}()
		if err != nil {
			return Result{}, err
		}
		if done {
			return result, nil
		}
	}

	capped :=apperrors.NewAgentStepsExceeded(a.cfg.MaxSteps)
	trace = append(trace, Step{Kind: StepFinal, Content: lastResponse})
	a.recordRun(len(toolsUsed) > 0, time.Since(start), a.cfg.MaxSteps, true)
	slog.Warn("agentloop: max_steps reached without a final answer", "max_steps", a.cfg.MaxSteps, "error", capped)

	return Result{
		FinalAnswer: lastResponse,
		Trace:       trace,
		ToolsUsed:   toolNames(toolsUsed),
		Iterations:  a.cfg.MaxSteps,
		Capped:      true,
	}, nil
}

func (a *Agent) recordRun(usedTool bool, duration time.Duration, iterations int, capped bool) {
	a.metrics.RecordAgentRun(usedTool, duration, iterations, capped)
}

func toolNames(used map[string]bool) []string {
	out := make([]string, 0, len(used))
	for name := range used {
		out = append(out, name)
	}
	return out
}

// bestEffortAnswer strips any THOUGHT:/ACTION:/ACTION_INPUT: prefixed
// lines from a response that never produced a parseable final answer,
// returning whatever free text remains.
func bestEffortAnswer(raw string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "THOUGHT:") || strings.HasPrefix(upper, "ACTION:") || strings.HasPrefix(upper, "ACTION_INPUT:") {
			continue
		}
		kept = append(kept, line)
	}
	result := strings.TrimSpace(strings.Join(kept, "\n"))
	if result == "" {
		return strings.TrimSpace(raw)
	}
	return result
}
