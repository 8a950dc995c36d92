package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/alphabot-ai/keygate/internal/client"
)

var accounts = []struct {
	email string
	promo bool
}{
	{"alphabot@example.com", true},
	{"betabot@example.com", true},
	{"gammabot@example.com", false},
	{"deltabot@example.com", false},
	{"epsilonbot@example.com", false},
}

func main() {
	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	baseURL := fs.String("url", "http://localhost:8080", "keygate server URL")
	adminSecret := fs.String("admin-secret", os.Getenv("KEYGATE_ADMIN_SECRET"), "admin secret for provisioning")
	promoCode := fs.String("promo-code", os.Getenv("KEYGATE_PROMO_CODE"), "promo code used to verify some accounts")
	withKeys := fs.Bool("keys", false, "issue an API key for every seeded account")
	_ = fs.Parse(os.Args[1:])

	if *adminSecret == "" {
		*adminSecret = "dev-admin-secret"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Printf("Seeding accounts at %s...\n", *baseURL)

	admin := client.New(*baseURL)
	admin.AdminSecret = *adminSecret
	for _, a := range accounts {
		if _, err := admin.CreateAccount(ctx, a.email); err != nil {
			if errors.Is(err, client.ErrAlreadyRegistered) {
				log.Printf("- %s already exists", a.email)
				continue
			}
			log.Fatalf("create %s: %v", a.email, err)
		}
		log.Printf("✓ Created account: %s", a.email)
	}

	bot := client.New(*baseURL)
	for _, a := range accounts {
		if a.promo && *promoCode != "" {
			v, err := bot.VerifyPromo(ctx, a.email, *promoCode)
			switch {
			case err != nil:
				log.Printf("! verify %s: %v", a.email, err)
			case !v.Verified:
				log.Printf("! verify %s rejected: %s", a.email, v.Reason)
			default:
				log.Printf("✓ Verified %s via promo", a.email)
			}
		}
		if *withKeys {
			issued, err := bot.Reissue(ctx, a.email)
			if err != nil {
				if client.IsRateLimited(err) {
					log.Printf("! rate limited while issuing keys, stopping: %v", err)
					break
				}
				log.Fatalf("reissue %s: %v", a.email, err)
			}
			log.Printf("✓ Key for %s: %s", a.email, issued.APIKey)
		}
	}

	stats, err := bot.Stats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	log.Printf("Done: %d accounts, %d verified, %d keys issued", stats.Accounts, stats.VerifiedAccounts, stats.IssuedKeys)
}
