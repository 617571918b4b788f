package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Fairlead-Analytics/riskserver/internal/loadtest"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "Base URL of the server to test")
		profile   = flag.String("profile", "light", "Load profile: light, medium, heavy")
		rps       = flag.Int("rps", 0, "Custom requests per second (overrides profile)")
		duration  = flag.Duration("duration", 0, "Custom test duration (overrides profile)")
		readRatio = flag.Float64("read-ratio", 0, "Read ratio 0.0-1.0 (overrides profile)")
		batchRows = flag.Int("batch-rows", 0, "Rows per synthetic batch upload (overrides profile)")
	)
	flag.Parse()

	tester := loadtest.NewLoadTester(*baseURL)

	custom := *rps > 0 || *duration > 0 || *readRatio > 0 || *batchRows > 0
	if !custom {
		loadProfile := loadtest.LoadProfile(*profile)
		fmt.Printf("Running load profile: %s\n\n", loadProfile)

		stats, err := tester.Run(contextWithSignal(), loadProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(stats.Report())
		return
	}

	config := loadtest.LoadProfiles[loadtest.ProfileLight]
	if *rps > 0 {
		config.RequestsPerSecond = *rps
	}
	if *duration > 0 {
		config.Duration = *duration
	}
	if *readRatio > 0 {
		config.ReadRatio = *readRatio
	}
	if *batchRows > 0 {
		config.BatchRows = *batchRows
	}

	fmt.Printf("Running custom load test: %d req/s for %s\n\n", config.RequestsPerSecond, config.Duration)

	stats, err := tester.RunCustom(contextWithSignal(), config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(stats.Report())
}

// contextWithSignal returns a context that is cancelled on SIGINT/SIGTERM.
func contextWithSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping test...")
		cancel()
	}()

	return ctx
}
