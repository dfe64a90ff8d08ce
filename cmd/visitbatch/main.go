// Command visitbatch serves GET /visit, which runs a batch of headless
// browser visits against the configured target page.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ibeckermayer/visitbatch/internal/app"
	"github.com/ibeckermayer/visitbatch/internal/config"
	"github.com/ibeckermayer/visitbatch/internal/server"
	"github.com/ibeckermayer/visitbatch/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Printf("Warning: could not load config: %v (using defaults)", err)
			cfg = config.Default()
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		// Still serve; /visit reports the problem until the config is fixed.
		log.Printf("Warning: %v", err)
	}

	// History is optional; the service runs without it
	var st *store.Store
	if dbPath, err := cfg.HistoryPath(); err != nil {
		log.Printf("Warning: no history path: %v", err)
	} else if st, err = store.New(dbPath); err != nil {
		log.Printf("Warning: could not open history at %s: %v", dbPath, err)
		st = nil
	} else {
		defer st.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(ctx, cfg, st)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := a.ReloadConfig(); err != nil {
				log.Printf("Config reload failed: %v", err)
			}
		}
	}()

	log.Println("visitbatch starting...")

	if err := server.New(a).ListenAndServe(ctx, cfg.Server.Port); err != nil {
		log.Printf("Server error: %v", err)
	}

	stop()
	log.Println("Waiting for running batches to stop...")
	a.Wait()
	log.Println("Done.")
}
