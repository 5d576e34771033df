package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/mstanton/ledgerd/internal/api"
	"github.com/mstanton/ledgerd/internal/config"
	"github.com/mstanton/ledgerd/internal/ledger"
	"github.com/mstanton/ledgerd/internal/models"
	"github.com/mstanton/ledgerd/internal/store"
	"github.com/mstanton/ledgerd/internal/wal"
)

func main() {
	// A local .env is a convenience, not a requirement.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ledgerStore, cleanup, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Unable to initialize store: %v", err)
	}
	defer cleanup()

	engine := ledger.New(ledgerStore)
	handler := api.NewHandler(engine)
	router := api.NewRouter(handler)

	log.Printf("Server starting on :%s (%s backend)", cfg.Server.Port, cfg.Store.Backend)
	if err := http.ListenAndServe(":"+cfg.Server.Port, router); err != nil {
		log.Fatal(err)
	}
}

func buildStore(cfg *config.Config) (ledger.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := store.NewPostgresLedger(cfg.Store.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil

	case config.BackendMemory:
		customers := make([]models.Customer, 0, len(cfg.Customers))
		for _, c := range cfg.Customers {
			customers = append(customers, models.Customer{
				ID:             c.ID,
				OverdraftLimit: c.OverdraftLimit,
				Balance:        c.Balance,
			})
		}

		var w store.WAL
		cleanup := func() {}
		if cfg.Store.WALPath != "" {
			fileWAL, err := wal.Open(cfg.Store.WALPath)
			if err != nil {
				return nil, nil, err
			}
			w = fileWAL
			cleanup = func() { fileWAL.Close() }
		}

		mem, err := store.NewMemoryLedger(customers, w)
		if err != nil {
			return nil, nil, err
		}
		return mem, cleanup, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
