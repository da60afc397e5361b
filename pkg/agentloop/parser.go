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

package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
)

// parsed is the strict-grammar parser's output: either a tool call or
// a final answer, never both.
type parsed struct {
	isFinal     bool
	finalAnswer string

	thought   string
	toolName  string
	toolInput map[string]any
}

const (
	prefixThought      = "THOUGHT:"
	prefixAction       = "ACTION:"
	prefixActionInput  = "ACTION_INPUT:"
	prefixFinalAnswer  = "FINAL_ANSWER:"
)

// parseResponse recognizes THOUGHT:/ACTION:/ACTION_INPUT: and
// FINAL_ANSWER: line-prefixed markers. A response naming both ACTION
// and FINAL_ANSWER is unparseable by definition: the grammar requires
// exactly one shape per response.
func parseResponse(raw string) (parsed, error) {
	lines := strings.Split(raw, "\n")

	var thought, action, actionInput, finalAnswer strings.Builder
	var hasAction, hasFinal bool
	var current *strings.Builder

	for _, line := range lines {
		switch {
		case hasPrefix(line, prefixThought):
			current = &thought
			current.WriteString(strings.TrimSpace(trimPrefix(line, prefixThought)))
		case hasPrefix(line, prefixActionInput):
			current = &actionInput
			current.WriteString(strings.TrimSpace(trimPrefix(line, prefixActionInput)))
		case hasPrefix(line, prefixAction):
			hasAction = true
			current = &action
			current.WriteString(strings.TrimSpace(trimPrefix(line, prefixAction)))
		case hasPrefix(line, prefixFinalAnswer):
			hasFinal = true
			current = &finalAnswer
			current.WriteString(strings.TrimSpace(trimPrefix(line, prefixFinalAnswer)))
		case current != nil:
			current.WriteString("\n")
			current.WriteString(line)
		}
	}

	if hasAction && hasFinal {
		return parsed{}, apperrors.NewAgentUnparseable(raw)
	}

	if hasFinal {
		return parsed{isFinal: true, finalAnswer: strings.TrimSpace(finalAnswer.String())}, nil
	}

	if hasAction {
		toolName := strings.TrimSpace(action.String())
		if toolName == "" {
			return parsed{}, apperrors.NewAgentUnparseable(raw)
		}

		inputRaw := strings.TrimSpace(actionInput.String())
		var input map[string]any
		if inputRaw != "" {
			if err := json.Unmarshal([]byte(inputRaw), &input); err != nil {
				return parsed{}, apperrors.NewAgentUnparseable(raw)
			}
		} else {
			input = map[string]any{}
		}

		return parsed{
			thought:   strings.TrimSpace(thought.String()),
			toolName:  toolName,
			toolInput: input,
		}, nil
	}

	return parsed{}, apperrors.NewAgentUnparseable(raw)
}

func hasPrefix(line, prefix string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), prefix)
}

func trimPrefix(line, prefix string) string {
	trimmed := strings.TrimSpace(line)
	return trimmed[len(prefix):]
}
