package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return runServer(nil)
	}

	cmd := args[0]
	if strings.HasPrefix(cmd, "-") && cmd != "-h" && cmd != "--help" && cmd != "-v" && cmd != "--version" {
		return runServer(args)
	}
	rest := args[1:]

	switch cmd {
	case "serve", "server":
		return runServer(rest)
	case "reissue":
		return cmdReissue(rest)
	case "nonce":
		return cmdNonce(rest)
	case "verify-promo":
		return cmdVerifyPromo(rest)
	case "verify-tweet":
		return cmdVerifyTweet(rest)
	case "whoami", "me":
		return cmdWhoami(rest)
	case "status":
		return cmdStatus(rest)
	case "version", "-v", "--version":
		fmt.Printf("keygate %s\n", version)
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	return nil
}

func printUsage() {
	fmt.Println(`keygate - API key issuance for bots

Usage: keygate <command> [options]

Quick Start:
  keygate reissue --email bot@example.com --url https://keygate.example.com
  keygate whoami

Client Commands:
  reissue        Issue a new API key (the previous key stops working)
  nonce          Request a nonce to post in a public tweet
  verify-tweet   Verify the account with a tweet containing the nonce
  verify-promo   Verify the account with a promo code
  whoami         Show the account bound to the saved API key
  status         Show saved config and server status

Server:
  serve          Start the keygate server (default if no command)

Server flags override KEYGATE_* environment variables, which override the
file named by KEYGATE_CONFIG (.yaml or .jsonc). Run 'keygate serve --help'
for the full list.

Environment Variables (server):
  KEYGATE_ADDR             Listen address (default: :8080)
  KEYGATE_DB               Database path (default: keygate.db)
  KEYGATE_ADMIN_SECRET     Admin API secret
  KEYGATE_HASH_SECRET      Pepper for API key hashes
  KEYGATE_PROMO_CODES      Comma-separated promo codes (KEYGATE_PROMO_CODE for one)
  KEYGATE_RATE_BACKEND     memory or redis (default: memory)
  KEYGATE_REDIS_ADDR       Redis address for the redis backend
  KEYGATE_RL_WINDOW        Rate limit window (default: 1h)
  KEYGATE_LOG_FORMAT       text or json`)
}
