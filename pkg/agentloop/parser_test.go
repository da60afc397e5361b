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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponse_FinalAnswer(t *testing.T) {
	p, err := parseResponse("FINAL_ANSWER: the capital of France is Paris")
	require.NoError(t, err)
	require.True(t, p.isFinal)
	require.Equal(t, "the capital of France is Paris", p.finalAnswer)
}

func TestParseResponse_ToolCall(t *testing.T) {
	raw := "THOUGHT: I need to compute this\nACTION: calculator\nACTION_INPUT: {\"expression\": \"2 + 2\"}"
	p, err := parseResponse(raw)
	require.NoError(t, err)
	require.False(t, p.isFinal)
	require.Equal(t, "calculator", p.toolName)
	require.Equal(t, "I need to compute this", p.thought)
	require.Equal(t, "2 + 2", p.toolInput["expression"])
}

func TestParseResponse_BothMarkersIsUnparseable(t *testing.T) {
	raw := "ACTION: calculator\nACTION_INPUT: {}\nFINAL_ANSWER: done"
	_, err := parseResponse(raw)
	require.Error(t, err)
}

func TestParseResponse_NeitherMarkerIsUnparseable(t *testing.T) {
	_, err := parseResponse("I am not sure what to do here.")
	require.Error(t, err)
}

func TestParseResponse_InvalidJSONActionInputIsUnparseable(t *testing.T) {
	raw := "ACTION: calculator\nACTION_INPUT: not json at all"
	_, err := parseResponse(raw)
	require.Error(t, err)
}

func TestParseResponse_MultilineFinalAnswer(t *testing.T) {
	raw := "FINAL_ANSWER: line one\nline two"
	p, err := parseResponse(raw)
	require.NoError(t, err)
	require.Contains(t, p.finalAnswer, "line one")
	require.Contains(t, p.finalAnswer, "line two")
}

func TestParseResponse_CaseInsensitivePrefixes(t *testing.T) {
	p, err := parseResponse("final_answer: lowercase marker still parses")
	require.NoError(t, err)
	require.True(t, p.isFinal)
}
