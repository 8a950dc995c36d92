package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/alphabot-ai/keygate/internal/client"
)

const defaultBaseURL = "http://localhost:8080"

// CLIConfig holds the CLI client configuration persisted to disk.
type CLIConfig struct {
	BaseURL string `json:"base_url"`
	Email   string `json:"email"`
	APIKey  string `json:"api_key"`
}

type clientFlags struct {
	fs    *pflag.FlagSet
	url   *string
	email *string
	saved CLIConfig
}

// newClientFlags registers --url and --email, defaulting to the saved CLI
// config so repeat invocations need no flags.
func newClientFlags(name string) *clientFlags {
	saved, _ := loadCLIConfig()
	baseURL := saved.BaseURL
	if env := os.Getenv("KEYGATE_URL"); env != "" {
		baseURL = env
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	return &clientFlags{
		fs:    fs,
		url:   fs.String("url", baseURL, "keygate server URL"),
		email: fs.String("email", saved.Email, "account email"),
		saved: saved,
	}
}

func (f *clientFlags) parse(args []string, needEmail bool) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if needEmail && strings.TrimSpace(*f.email) == "" {
		return errors.New("--email is required")
	}
	return nil
}

func (f *clientFlags) client() *client.Client {
	c := client.New(*f.url)
	if *f.url == f.saved.BaseURL {
		c.APIKey = f.saved.APIKey
	}
	return c
}

func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, timeout := context.WithTimeout(ctx, time.Minute)
	return ctx, func() {
		timeout()
		cancel()
	}
}

func cmdReissue(args []string) error {
	f := newClientFlags("reissue")
	if err := f.parse(args, true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	c := f.client()
	issued, err := c.Reissue(ctx, *f.email)
	if err != nil {
		return err
	}
	cfg := CLIConfig{BaseURL: *f.url, Email: strings.ToLower(strings.TrimSpace(*f.email)), APIKey: issued.APIKey}
	if err := saveCLIConfig(cfg); err != nil {
		return fmt.Errorf("key issued but not saved: %w\nAPI key: %s", err, issued.APIKey)
	}

	fmt.Printf("API key: %s\n", issued.APIKey)
	fmt.Println("Any previous key for this account no longer works.")
	fmt.Printf("Saved to %s\n", cliConfigPath())
	return nil
}

func cmdNonce(args []string) error {
	f := newClientFlags("nonce")
	if err := f.parse(args, true); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	nonce, err := f.client().RequestNonce(ctx, *f.email)
	if err != nil {
		return err
	}
	fmt.Printf("Nonce:   %s\n", nonce.Nonce)
	fmt.Printf("Expires: %s\n", nonce.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Println("\nPost a public tweet containing the nonce, then run:")
	fmt.Printf("  keygate verify-tweet --email %s --tweet-url <url>\n", *f.email)
	return nil
}

func cmdVerifyPromo(args []string) error {
	f := newClientFlags("verify-promo")
	code := f.fs.String("code", "", "promo code (required)")
	if err := f.parse(args, true); err != nil {
		return err
	}
	if strings.TrimSpace(*code) == "" {
		return errors.New("--code is required")
	}
	ctx, cancel := commandContext()
	defer cancel()

	v, err := f.client().VerifyPromo(ctx, *f.email, *code)
	if err != nil {
		return err
	}
	return printVerification(v)
}

func cmdVerifyTweet(args []string) error {
	f := newClientFlags("verify-tweet")
	tweetURL := f.fs.String("tweet-url", "", "URL of the public tweet containing the nonce (required)")
	if err := f.parse(args, true); err != nil {
		return err
	}
	if strings.TrimSpace(*tweetURL) == "" {
		return errors.New("--tweet-url is required")
	}
	ctx, cancel := commandContext()
	defer cancel()

	v, err := f.client().VerifyTweet(ctx, *f.email, *tweetURL)
	if err != nil {
		return err
	}
	return printVerification(v)
}

func printVerification(v *client.Verification) error {
	if !v.Verified {
		return fmt.Errorf("verification failed: %s", v.Reason)
	}
	if v.Handle != "" {
		fmt.Printf("Verified via %s as @%s\n", v.Via, v.Handle)
	} else {
		fmt.Printf("Verified via %s\n", v.Via)
	}
	return nil
}

func cmdWhoami(args []string) error {
	f := newClientFlags("whoami")
	if err := f.parse(args, false); err != nil {
		return err
	}
	c := f.client()
	if c.APIKey == "" {
		return errors.New("no saved api key - run 'keygate reissue --email <email>'")
	}
	ctx, cancel := commandContext()
	defer cancel()

	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Account: %s (#%d)\n", me.Email, me.AccountID)
	fmt.Printf("Key:     %s...\n", me.KeyPrefix)
	if me.KeyIssuedAt != nil {
		fmt.Printf("Issued:  %s\n", me.KeyIssuedAt.Local().Format(time.RFC1123))
	}
	if me.Verified {
		if me.Handle != "" {
			fmt.Printf("Status:  verified via %s (@%s)\n", me.VerifiedVia, me.Handle)
		} else {
			fmt.Printf("Status:  verified via %s\n", me.VerifiedVia)
		}
	} else {
		fmt.Println("Status:  not verified")
	}
	return nil
}

func cmdStatus(args []string) error {
	f := newClientFlags("status")
	if err := f.parse(args, false); err != nil {
		return err
	}
	fmt.Printf("Server:  %s\n", *f.url)
	if f.saved.Email != "" {
		fmt.Printf("Email:   %s\n", f.saved.Email)
	}
	if f.saved.APIKey != "" {
		fmt.Printf("Key:     %s...\n", f.saved.APIKey[:min(len(f.saved.APIKey), 11)])
	} else {
		fmt.Println("Key:     none saved")
	}

	ctx, cancel := commandContext()
	defer cancel()
	c := f.client()
	if err := c.Health(ctx); err != nil {
		fmt.Printf("Health:  unreachable (%v)\n", err)
		return nil
	}
	fmt.Println("Health:  ok")
	if stats, err := c.Stats(ctx); err == nil {
		fmt.Printf("Stats:   %d accounts, %d verified, %d keys issued\n", stats.Accounts, stats.VerifiedAccounts, stats.IssuedKeys)
	}
	return nil
}

func keygateDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".keygate")
}

func cliConfigPath() string {
	return filepath.Join(keygateDir(), "config.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return CLIConfig{}, errors.New("not initialized")
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	path := cliConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(path, data, 0600)
}
