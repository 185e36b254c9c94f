package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/flagx"
	"github.com/dmitrijs2005/csvkeeper/internal/server"
	"github.com/dmitrijs2005/csvkeeper/internal/server/auth"
	"github.com/dmitrijs2005/csvkeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}

}

// issueToken prints an access token for -owner signed with the server secret.
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id the token is issued to")
	ttl := fs.Duration("ttl", cfg.AccessTokenValidityDuration, "token lifetime")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-owner", "-ttl"})); err != nil {
		return err
	}
	if *owner == "" {
		return fmt.Errorf("token: -owner is required")
	}
	if *ttl <= 0 {
		*ttl = time.Hour
	}

	tok, err := auth.GenerateToken(*owner, []byte(cfg.SecretKey), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
