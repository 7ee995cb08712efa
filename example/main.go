package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nffu/fenetre"
	"github.com/nffu/fenetre/example/mocklockbox"
)

func main() {
	// start the mock backend (see mocklockbox)
	mock := mocklockbox.New(slog.Default())
	go func() {
		if err := http.ListenAndServe(":9999", mock.Handler()); err != nil {
			slog.Error("mock server error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	app, err := fenetre.New(
		fenetre.WithBaseURL("http://localhost:9999"),
		fenetre.WithPort(8080),
		fenetre.WithTitle("fenetre demo"),
		fenetre.WithBackoff(fenetre.BackoffPolicy{
			Initial:    500 * time.Millisecond,
			Factor:     2,
			Max:        5 * time.Second,
			MaxElapsed: 2 * time.Minute,
		}),
		fenetre.WithReportCallback(func(r fenetre.Report) {
			slog.Info("courses discovered",
				"status", r.Status.String(),
				"verified", r.Count(fenetre.Verified),
				"unconfigured", r.Count(fenetre.Unconfigured),
			)
		}),
	)
	if err != nil {
		slog.Error("failed to create fenetre", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   fenetre demo                                        ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Save any username and password to start course      ║")
	fmt.Println("  ║   discovery. The password \"wrong\" logs an error.      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		slog.Error("fenetre error", "error", err)
		os.Exit(1)
	}
}
