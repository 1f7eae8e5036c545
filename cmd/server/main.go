package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"orderdesk/internal/auth"
	"orderdesk/internal/config"
	"orderdesk/internal/server"
	"orderdesk/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)
	st, err := store.NewWithOptions(store.Options{
		AccountsStateFile: cfg.AccountsStateFile,
		OrdersDBFile:      cfg.OrdersDBFile,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "orderdesk",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := server.NewRouter(server.Deps{Store: st, TokenConfig: tokenCfg, SignInRateLimit: cfg.SignInRateLimit})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	if err := server.Run(ctx, cfg, router); err != nil {
		log.Printf("server: %v", err)
	}
}
