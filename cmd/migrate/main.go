// migrate runs the embedded SQL migrations against DATABASE_URL.
//
//	go run ./cmd/migrate                   # up
//	go run ./cmd/migrate -direction down
//	go run ./cmd/migrate -steps -1
//	go run ./cmd/migrate -version
package main

import (
	"flag"
	"fmt"
	"os"

	"dfp-neo/backend/internal/config"
	"dfp-neo/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Apply n migrations (negative rolls back); overrides -direction")
	version := flag.Bool("version", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config", err)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	switch {
	case *version:
		v, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fail("version", err)
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
	case *steps != 0:
		if err := migrate.Steps(cfg.DatabaseURL, *steps); err != nil {
			fail("migrate", err)
		}
	default:
		if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
			fail("migrate", err)
		}
	}
}

func fail(what string, err error) {
	fmt.Fprintln(os.Stderr, what+":", err)
	os.Exit(1)
}
