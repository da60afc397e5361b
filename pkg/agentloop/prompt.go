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
	"fmt"
	"strings"

	"github.com/kadirpekel/docgateway/pkg/tools"
)

const systemPreamble = `You are a reasoning agent that answers by either calling a tool or giving a final answer.

You have access to the following tools:
%s

On every turn, respond with EXACTLY ONE of the two shapes below. Never mix them in the same response.

To call a tool:
THOUGHT: <why you need this tool>
ACTION: <tool name>
ACTION_INPUT: <a single-line JSON object matching the tool's parameters>

To answer the user:
FINAL_ANSWER: <your complete answer>
`

const clarifyingSuffix = `

Your previous response could not be parsed. Respond with exactly one shape: either THOUGHT/ACTION/ACTION_INPUT, or FINAL_ANSWER — never both in the same response, and ACTION_INPUT must be valid single-line JSON.`

func (a *Agent) buildPrompt(retrying bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, systemPreamble, describeTools(a.registry))
	b.WriteString("\nConversation so far:\n")
	for _, turn := range a.history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Content)
	}
	if retrying {
		b.WriteString(clarifyingSuffix)
	}
	return b.String()
}

func describeTools(registry *tools.Registry) string {
	var b strings.Builder
	for _, d := range registry.Descriptors() {
		schemaJSON, _ := json.Marshal(d.Schema)
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", d.Name, d.Description, schemaJSON)
	}
	return b.String()
}
