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

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_UnknownToolReturnsToolErrorString(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "does_not_exist", map[string]any{})
	require.Contains(t, out, "does_not_exist")
}

func TestRegistry_InvalidArgsReturnsToolErrorString(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "get_weather", map[string]any{})
	require.NotEmpty(t, out)
}

func TestRegistry_CalculatorCorrectness(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "calculator", map[string]any{"expression": "25 * 8"})
	require.Equal(t, "200", out)
}

func TestRegistry_CalculatorFunctionsAndConstants(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "calculator", map[string]any{"expression": "sqrt(16) + abs(-4)"})
	require.Equal(t, "8", out)
}

func TestRegistry_CalculatorRejectsGarbage(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "calculator", map[string]any{"expression": "import os; os.system('rm -rf /')"})
	require.NotEqual(t, "", out)
}

func TestRegistry_CalculatorRejectsDivisionByZero(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "calculator", map[string]any{"expression": "1 / 0"})
	require.NotContains(t, out, "Inf")
}

func TestRegistry_DescriptorsIncludesAllFourTools(t *testing.T) {
	r := NewRegistry()
	names := map[string]bool{}
	for _, d := range r.Descriptors() {
		names[d.Name] = true
	}
	require.True(t, names["calculator"])
	require.True(t, names["get_current_time"])
	require.True(t, names["get_weather"])
	require.True(t, names["search_knowledge"])
}

func TestEvalExpression_ParenthesesAndPrecedence(t *testing.T) {
	v, err := evalExpression("(2 + 3) * 4")
	require.NoError(t, err)
	require.Equal(t, float64(20), v)
}

func TestEvalExpression_UnaryMinus(t *testing.T) {
	v, err := evalExpression("-5 + 10")
	require.NoError(t, err)
	require.Equal(t, float64(5), v)
}

func TestEvalExpression_ConstantPi(t *testing.T) {
	v, err := evalExpression("pi")
	require.NoError(t, err)
	require.InDelta(t, 3.14159, v, 0.001)
}

func TestEvalExpression_EmptyIsError(t *testing.T) {
	_, err := evalExpression("")
	require.Error(t, err)
}

func TestEvalExpression_UnknownIdentifierIsError(t *testing.T) {
	_, err := evalExpression("banana(5)")
	require.Error(t, err)
}

func TestEvalExpression_TrailingGarbageIsError(t *testing.T) {
	_, err := evalExpression("2 + 2 foo")
	require.Error(t, err)
}
