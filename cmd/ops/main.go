package main

import (
	"log"

	"casedocs-backend/internal/bootstrap"
	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/shared/config"
	"casedocs-backend/internal/shared/server"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	r := server.NewRouter(server.RouterDeps{
		Config:     cfg,
		Documents:  documents.NewHandler(app.Documents, app.CasesRepo, app.Producer),
		Reconciler: app.Reconciler,
	})

	addr := server.Addr(cfg.Port)
	log.Printf("starting ops server on %s", addr)

	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
