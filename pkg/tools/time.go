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
	"fmt"
	"time"
)

// currentTimeArgs is intentionally empty: get_current_time takes no arguments.
type currentTimeArgs struct{}

func currentTimeDescriptor() *Descriptor {
	return buildDescriptor[currentTimeArgs]("get_current_time", "Returns the current date and time.",
		func(ctx context.Context, args map[string]any) (string, error) {
			now := time.Now()
			return fmt.Sprintf("%s (%s)", now.Format(time.RFC3339), now.Format("Monday, January 2, 2006 at 3:04 PM")), nil
		})
}
