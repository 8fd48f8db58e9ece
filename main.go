package main

import (
	"log/slog"
	"os"

	"ticket-market/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		slog.Error("ticket-market stopped", "error", err)
		os.Exit(1)
	}
}
