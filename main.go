package main

import (
	"os"

	"workflow-engine/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
