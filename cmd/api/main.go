package main

import (
	"context"
	"log"
	"net/http"

	"agrichain/auth"
	"agrichain/bid"
	"agrichain/config"
	"agrichain/db"
	"agrichain/negotiation"
	"agrichain/quote"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	bidRepo := bid.NewRepository(pool)

	server := &Server{
		authService:        auth.NewService(auth.NewRepository(pool), cfg.JWT.Secret, cfg.JWT.Expiration),
		quoteService:       quote.NewService(quote.NewRepository(pool)),
		bidService:         bid.NewService(bidRepo),
		negotiationService: negotiation.NewService(negotiation.NewRepository(pool), bid.NewResolver(bidRepo)),
	}

	addr := ":" + cfg.Server.Port
	log.Printf("api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
