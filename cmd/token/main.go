// Command token mints a service token for calling the ledger API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/config"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/auth"
)

func main() {
	service := flag.String("service", "", "name of the calling service (token subject)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	token, err := auth.GenerateServiceToken([]byte(cfg.JWTSecret), *service, *ttl)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
