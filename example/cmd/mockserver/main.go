// Standalone mock lockbox backend for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/fenetre serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nffu/fenetre/example/mocklockbox"
)

func main() {
	fmt.Println("Mock lockbox backend starting on :9999")
	fmt.Println("Course discovery stays pending for a few polls after each credential update")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	mock := mocklockbox.New(slog.Default())
	if err := http.ListenAndServe(":9999", mock.Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
