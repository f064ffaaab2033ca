// cmd/noesis/main.go
package main

import (
	"github.com/joho/godotenv"

	cmd "github.com/mwiater/noesis/internal/commands"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Seams for the wiring test.
var (
	loadDotenv     = godotenv.Load
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main starts the noesis CLI application by delegating to the
// cobra root command defined in the commands package. A .env file
// in the working directory is loaded first so NOESIS_* variables
// and backend API keys are visible to configuration loading.
func main() {
	_ = loadDotenv()
	setVersionInfo(version, commit, date)
	executeCmd()
}
