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

// get_weather and search_knowledge are fixed-response demonstrator
// tools: neither calls a real backend. Wiring one in is left to an
// operator who needs actual weather or knowledge-base data.
package tools

import (
	"context"
	"fmt"
)

type weatherArgs struct {
	Location string `json:"location" jsonschema:"required,description=City or place name to look up"`
}

func weatherDescriptor() *Descriptor {
	return buildDescriptor[weatherArgs]("get_weather",
		"Returns a fixed demonstration weather report for a location. Not a real weather service.",
		func(ctx context.Context, args map[string]any) (string, error) {
			location, _ := args["location"].(string)
			if location == "" {
				location = "the requested location"
			}
			return fmt.Sprintf("Weather in %s: 21C, partly cloudy, light breeze. (demonstration data, not live)", location), nil
		})
}

type searchKnowledgeArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
}

func searchKnowledgeDescriptor() *Descriptor {
	return buildDescriptor[searchKnowledgeArgs]("search_knowledge",
		"Returns a fixed demonstration knowledge-base result for a query. Not a real search index.",
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			return fmt.Sprintf("No indexed knowledge-base results for %q. (demonstration tool, not a real search backend)", query), nil
		})
}
