package main

import (
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/ledgerimport/internal/cli"
	_ "github.com/JonMunkholm/ledgerimport/internal/core/kinds" // Register all kinds
)

func main() {
	// Optional; flags fall back to the process environment.
	_ = godotenv.Load()

	cli.Execute()
}
