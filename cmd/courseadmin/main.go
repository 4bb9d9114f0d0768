// Command courseadmin is the course administration tool.
//
//	# Run a local record API backed by SQLite
//	courseadmin emulate
//
//	# Serve the admin API against the configured record API
//	courseadmin serve
//
//	# Print the dashboard or one entity list as JSON
//	courseadmin dashboard
//	courseadmin list courses
//
// Settings come from --config (YAML), .env and COURSEADMIN_* variables.
package main

import (
	"log"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("courseadmin: %v", err)
	}
}
