package httpapp_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alphabot-ai/keygate/internal/apikey"
	"github.com/alphabot-ai/keygate/internal/auth"
	"github.com/alphabot-ai/keygate/internal/client"
	"github.com/alphabot-ai/keygate/internal/config"
	httpapp "github.com/alphabot-ai/keygate/internal/http"
	"github.com/alphabot-ai/keygate/internal/issuance"
	"github.com/alphabot-ai/keygate/internal/logging"
	"github.com/alphabot-ai/keygate/internal/rate"
	"github.com/alphabot-ai/keygate/internal/store/sqlite"
)

func TestEndToEndServer(t *testing.T) {
	st, err := sqlite.Open("file:e2e_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"html":       "<p>" + r.URL.Query().Get("url") + "</p>",
			"author_url": "https://twitter.com/e2e_bot",
		})
	}))
	defer oembed.Close()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.AdminSecret = "admin"
	cfg.HashSecret = "test-hash"
	cfg.PromoCodes = []string{"launch"}
	cfg.OEmbed.Endpoint = oembed.URL
	cfg.RateLimits = config.RateLimits{Window: time.Minute, ReissuePerWindow: 2, NoncePerWindow: 100, VerifyPerWindow: 100}

	log := logging.Nop()
	keys := apikey.NewGenerator(cfg.HashSecret)
	gate := rate.NewGate(rate.NewMemory(), cfg.RatePolicies(), log)
	server, err := httpapp.NewServer(cfg, httpapp.Deps{
		Store:    st,
		Auth:     auth.NewService(st, keys, cfg.NonceTTL),
		Gate:     gate,
		Issuance: issuance.NewService(gate, st, keys, log),
		Log:      log,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	httpServer := &http.Server{Handler: server}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	defer httpServer.Close()

	ctx := context.Background()
	baseURL := "http://" + listener.Addr().String()

	admin := client.New(baseURL)
	admin.AdminSecret = "admin"
	if _, err := admin.CreateAccount(ctx, "e2e@example.com"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := admin.CreateAccount(ctx, "E2E@example.com"); err != client.ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	bot := client.New(baseURL)
	issued, err := bot.Reissue(ctx, "e2e@example.com")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	me, err := bot.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Email != "e2e@example.com" || me.KeyPrefix != issued.KeyPrefix || me.Verified {
		t.Fatalf("unexpected account %+v", me)
	}

	v, err := bot.VerifyPromo(ctx, "e2e@example.com", "wrong")
	if err != nil || v.Verified {
		t.Fatalf("expected rejected promo, got %+v, %v", v, err)
	}

	nonce, err := bot.RequestNonce(ctx, "e2e@example.com")
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	v, err = bot.VerifyTweet(ctx, "e2e@example.com", "https://twitter.com/e2e_bot/status/9?t="+nonce.Nonce)
	if err != nil {
		t.Fatalf("verify tweet: %v", err)
	}
	if !v.Verified || v.Handle != "e2e_bot" {
		t.Fatalf("unexpected verification %+v", v)
	}

	if _, err := bot.Reissue(ctx, "e2e@example.com"); err != nil {
		t.Fatalf("second reissue: %v", err)
	}
	_, err = bot.Reissue(ctx, "e2e@example.com")
	if !client.IsRateLimited(err) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if !strings.Contains(err.Error(), "try again") {
		t.Fatalf("expected user facing notification, got %v", err)
	}

	me, err = bot.Me(ctx)
	if err != nil {
		t.Fatalf("me after rotation: %v", err)
	}
	if !me.Verified || me.VerifiedVia != "tweet" || me.Handle != "e2e_bot" {
		t.Fatalf("expected verified account, got %+v", me)
	}

	stats, err := bot.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Accounts != 1 || stats.VerifiedAccounts != 1 || stats.IssuedKeys != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
