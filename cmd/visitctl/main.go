// Command visitctl is a dev CLI for visitbatch maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/browser"

	browseropts "github.com/ibeckermayer/visitbatch/internal/browser"
	"github.com/ibeckermayer/visitbatch/internal/config"
	"github.com/ibeckermayer/visitbatch/internal/profile"
	"github.com/ibeckermayer/visitbatch/internal/store"
	"github.com/ibeckermayer/visitbatch/internal/visitor"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "visit":
		runVisit()
	case "history":
		runHistory()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: visitctl open <config|cache>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: visitctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  visit          Run one visit against the configured target in a visible browser")
	fmt.Println("  history        Print the most recent batches")
	fmt.Println("  history <id>   Print every visit of one batch")
	fmt.Println("  open config    Open config file in default editor")
	fmt.Println("  open cache     Open cache directory in file explorer")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	return cfg
}

func runVisit() {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	launcher := browseropts.NewLauncher(browseropts.Config{
		Headless: false, // visible so you can watch it
		ExecPath: cfg.Browser.ChromePath,
	})
	v := visitor.New(visitor.ChromeLauncher(launcher), profile.NewIPRotator())

	res, err := v.Visit(context.Background(), visitor.Params{
		URL:      cfg.Target.URL,
		Dwell:    cfg.Dwell(),
		Referral: cfg.Target.Referral,
		Device:   cfg.Target.Device,
	})
	if err != nil {
		log.Fatalf("Visit failed: %v", err)
	}
	fmt.Printf("device=%s referral=%s ip=%s took=%s\n",
		res.Device, res.Referral, res.IP, res.Finished.Sub(res.Started).Round(time.Millisecond))
}

func runHistory() {
	cfg := loadConfig()
	path, err := cfg.HistoryPath()
	if err != nil {
		log.Fatalf("Failed to get history path: %v", err)
	}

	st, err := store.New(path)
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer st.Close()

	if len(os.Args) > 2 {
		printVisits(st, os.Args[2])
		return
	}

	batches, err := st.RecentBatches(context.Background(), 20)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	for _, b := range batches {
		fmt.Printf("%s  %-8s  %2d/%-2d  %s  %s\n",
			b.StartedAt.Local().Format(time.DateTime), b.Status, b.Visits, b.Size, b.ID, b.Error)
	}
}

func printVisits(st *store.Store, batchID string) {
	visits, err := st.Visits(context.Background(), batchID)
	if err != nil {
		log.Fatalf("Failed to read visits: %v", err)
	}
	if len(visits) == 0 {
		fmt.Printf("No visits recorded for batch %s\n", batchID)
		return
	}
	for _, v := range visits {
		fmt.Printf("%2d  %s  %-8s %-8s %-15s %6s  %s\n",
			v.Seq, v.StartedAt.Local().Format(time.DateTime), v.Device, v.Referral, v.IP,
			v.FinishedAt.Sub(v.StartedAt).Round(time.Second), v.Error)
	}
}

func runOpen(target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}
