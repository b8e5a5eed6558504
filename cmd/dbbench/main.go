package main

import (
	"github.com/joho/godotenv"

	"github.com/berth-dev/dbbench/internal/cli"
)

func main() {
	// API keys usually live in .env; a missing file is fine.
	_ = godotenv.Load()
	cli.Execute()
}
