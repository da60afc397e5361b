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

// Package tools implements the agent loop's static tool registry:
// calculator, get_current_time, get_weather, and search_knowledge. Each
// tool's parameter schema is generated once at registration via
// invopop/jsonschema and validated at call time via
// santhosh-tekuri/jsonschema/v5. A tool never panics or aborts the
// agent loop: unknown tools and invalid arguments become a ToolError
// result string instead.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invopop/jsonschema"
	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/kadirpekel/docgateway/pkg/observability"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

var tracer = observability.GetTracer("docgateway.tools")

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// Descriptor describes one registered tool: its name, a natural
// language description for the LLM's tool-selection prompt, its
// compiled JSON parameter schema, and the function that executes it.
type Descriptor struct {
	Name        string
	Description string
	Schema      map[string]any

	compiled *jsonschemav5.Schema
	executor func(ctx context.Context, args map[string]any) (string, error)
}

// Registry is the agent loop's static, immutable set of tools.
type Registry struct {
	tools map[string]*Descriptor
}

// NewRegistry builds the registry with the gateway's four built-in tools.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]*Descriptor)}
	r.register(calculatorDescriptor())
	r.register(currentTimeDescriptor())
	r.register(weatherDescriptor())
	r.register(searchKnowledgeDescriptor())
	return r
}

func (r *Registry) register(d *Descriptor) {
	r.tools[d.Name] = d
}

// Descriptors returns every registered tool, for building the agent
// loop's tool-description prompt section.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	return out
}

// Execute runs toolName with args (a JSON object, typically the agent
// loop's parsed ACTION_INPUT). Unknown tool names and schema violations
// never return a Go error: they come back as the human-readable result
// string a ToolError would produce, so the agent loop can feed them
// straight back to the LLM as an observation.
func (r *Registry) Execute(ctx context.Context, toolName string, args map[string]any) string {
	ctx, span := tracer.Start(ctx, "tool.execute", trace.WithAttributes(attribute.String("tool.name", toolName)))
	defer span.End()

	d, ok := r.tools[toolName]
	if !ok {
		err := apperrors.NewToolError(toolName, fmt.Sprintf("unknown tool %q", toolName), nil)
		span.SetStatus(codes.Error, err.Error())
		return err.Error()
	}

	if d.compiled != nil {
		payload, err := json.Marshal(args)
		if err != nil {
			wrapped := apperrors.NewToolError(toolName, "could not encode arguments", err)
			span.SetStatus(codes.Error, wrapped.Error())
			return wrapped.Error()
		}
		var decoded any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			wrapped := apperrors.NewToolError(toolName, "could not decode arguments", err)
			span.SetStatus(codes.Error, wrapped.Error())
			return wrapped.Error()
		}
		if err := d.compiled.Validate(decoded); err != nil {
			wrapped := apperrors.NewToolError(toolName, "arguments do not match the tool's schema", err)
			span.SetStatus(codes.Error, wrapped.Error())
			return wrapped.Error()
		}
	}

	result, err := d.executor(ctx, args)
	if err != nil {
		wrapped := apperrors.NewToolError(toolName, "tool execution failed", err)
		span.SetStatus(codes.Error, wrapped.Error())
		return wrapped.Error()
	}
	span.SetStatus(codes.Ok, "")
	return result
}

// buildDescriptor generates a schema from a Go argument type via
// invopop/jsonschema, compiles it with santhosh-tekuri/jsonschema/v5 for
// runtime validation, and wires the pair to name/description/executor.
func buildDescriptor[T any](name, description string, exec func(ctx context.Context, args map[string]any) (string, error)) *Descriptor {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: failed to marshal schema for %s: %v", name, err))
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		panic(fmt.Sprintf("tools: failed to decode schema for %s: %v", name, err))
	}
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")

	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource(name+".schema.json", bytesReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("tools: failed to add schema resource for %s: %v", name, err))
	}
	compiled, err := compiler.Compile(name + ".schema.json")
	if err != nil {
		panic(fmt.Sprintf("tools: failed to compile schema for %s: %v", name, err))
	}

	return &Descriptor{
		Name:        name,
		Description: description,
		Schema:      schemaMap,
		compiled:    compiled,
		executor:    exec,
	}
}
