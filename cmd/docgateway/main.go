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

// Command docgateway is the CLI for the document-aware chat gateway.
//
// Usage:
//
//	docgateway serve --config gateway.yaml
//	docgateway serve --http-admin-addr :9090
//	docgateway version
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	docgateway "github.com/kadirpekel/docgateway"
	"github.com/kadirpekel/docgateway/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the gateway's WebSocket session server and admin HTTP server."`

	Config    string `short:"c" help:"Path to YAML config file. Omit to run with compiled defaults." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)."`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(docgateway.GetVersion().String())
	return nil
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("docgateway"),
		kong.Description("docgateway - a document-aware chat gateway for a locally hosted LLM runtime"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

func printBanner() {
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		return
	}
	greenColor := "\033[38;2;16;185;129m"
	resetColor := "\033[0m"
	fmt.Printf("%s%s%s\n", greenColor, `
 _____                    _
|  __ \                  | |
| |  | | ___   ___ __ _  | |_ ___ __      ____ _ _   _
| |  | |/ _ \ / __/ _` + "`" + ` | | __/ _ \\ \ /\ / / _` + "`" + ` | | | |
| |__| | (_) | (_| (_| | | ||  __/ \ V  V / (_| | |_| |
|_____/ \___/ \___\__, |  \__\___|  \_/\_/ \__,_|\__, |
                   __/ |                          __/ |
                  |___/                          |___/
`, resetColor)
}
