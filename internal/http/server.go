package httpapp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alphabot-ai/keygate/internal/auth"
	"github.com/alphabot-ai/keygate/internal/config"
	"github.com/alphabot-ai/keygate/internal/issuance"
	"github.com/alphabot-ai/keygate/internal/logging"
	"github.com/alphabot-ai/keygate/internal/model"
	"github.com/alphabot-ai/keygate/internal/rate"
	"github.com/alphabot-ai/keygate/internal/store"
	"github.com/alphabot-ai/keygate/internal/verify"

	_ "github.com/alphabot-ai/keygate/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
	"gopkg.in/yaml.v3"
)

const maxBodyBytes = 64 << 10

// Error codes carried in the "code" field of error responses.
const (
	codeRateLimited      = "rate_limited"
	codeBadRequest       = "bad_request"
	codeNotFound         = "not_found"
	codeUnavailable      = "unavailable"
	codeInternal         = "internal"
	codeUnauthorized     = "unauthorized"
	codeConflict         = "conflict"
	codeMethodNotAllowed = "method_not_allowed"
)

// PostVerifier checks a public post for a nonce.
type PostVerifier interface {
	Verify(ctx context.Context, postURL, nonce string) verify.Result
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Deps are the collaborators a Server routes requests to. Promo and Social
// are built from the config when nil.
type Deps struct {
	Store    store.Store
	Auth     *auth.Service
	Gate     issuance.RateGate
	Issuance *issuance.Service
	Promo    *verify.PromoVerifier
	Social   PostVerifier
	Log      logging.Logger
	Build    BuildInfo
}

type Server struct {
	cfg      config.Config
	store    store.Store
	auth     *auth.Service
	gate     issuance.RateGate
	issuance *issuance.Service
	promo    *verify.PromoVerifier
	social   PostVerifier
	log      logging.Logger
	build    BuildInfo
	now      func() time.Time
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("httpapp: store required")
	case deps.Auth == nil:
		return nil, errors.New("httpapp: auth service required")
	case deps.Gate == nil:
		return nil, errors.New("httpapp: rate gate required")
	case deps.Issuance == nil:
		return nil, errors.New("httpapp: issuance service required")
	}
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	promo := deps.Promo
	if promo == nil {
		promo = verify.NewPromoVerifier(cfg.PromoCodes)
	}
	social := deps.Social
	if social == nil {
		social = verify.NewSocialVerifier(cfg.OEmbed.Endpoint, cfg.OEmbed.Timeout, log)
	}
	return &Server{
		cfg:      cfg,
		store:    deps.Store,
		auth:     deps.Auth,
		gate:     deps.Gate,
		issuance: deps.Issuance,
		promo:    promo,
		social:   social,
		log:      log.With("component", "http"),
		build:    deps.Build,
		now:      time.Now,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logRequests(http.HandlerFunc(s.route)).ServeHTTP(w, r)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/"):
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		s.handleAPI(w, r)
	case path == "/healthz":
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case strings.HasPrefix(path, "/swagger/"):
		httpSwagger.WrapHandler.ServeHTTP(w, r)
	default:
		notFound(w)
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	var handler http.HandlerFunc
	method := http.MethodPost

	switch {
	case len(segments) == 2 && segments[0] == "keys" && segments[1] == "reissue":
		handler = s.handleReissue
	case len(segments) == 2 && segments[0] == "verify" && segments[1] == "nonce":
		handler = s.handleVerifyNonce
	case len(segments) == 2 && segments[0] == "verify" && segments[1] == "promo":
		handler = s.handleVerifyPromo
	case len(segments) == 2 && segments[0] == "verify" && segments[1] == "tweet":
		handler = s.handleVerifyTweet
	case len(segments) == 1 && segments[0] == "me":
		handler, method = s.handleMe, http.MethodGet
	case len(segments) == 2 && segments[0] == "admin" && segments[1] == "accounts":
		if r.Method == http.MethodGet {
			handler, method = s.handleAdminListAccounts, http.MethodGet
		} else {
			handler = s.handleAdminCreateAccount
		}
	case len(segments) == 2 && segments[0] == "admin" && segments[1] == "delete-account":
		handler = s.handleAdminDeleteAccount
	case len(segments) == 1 && segments[0] == "stats":
		handler, method = s.handleGetStats, http.MethodGet
	case len(segments) == 1 && segments[0] == "version":
		handler, method = s.handleVersion, http.MethodGet
	case len(segments) == 1 && segments[0] == "openapi.json":
		handler, method = s.serveOpenAPIJSON, http.MethodGet
	case len(segments) == 1 && segments[0] == "openapi.yaml":
		handler, method = s.serveOpenAPIYAML, http.MethodGet
	}

	if handler == nil {
		notFound(w)
		return
	}
	if r.Method != method {
		methodNotAllowed(w)
		return
	}
	handler(w, r)
}

// handleReissue godoc
//
//	@Summary		Reissue an API key
//	@Description	Generate a fresh API key for the account with the given email. Any previous key stops working immediately. The key is returned once and never stored in plaintext.
//	@Tags			Keys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string}	true	"Account email"
//	@Success		200		{object}	map[string]any			"New API key"
//	@Failure		400		{object}	map[string]string		"Missing or invalid email"
//	@Failure		404		{object}	map[string]string		"Unknown account"
//	@Failure		429		{object}	map[string]any			"Rate limited"
//	@Failure		503		{object}	map[string]string		"Rate limiter unavailable"
//	@Router			/api/keys/reissue [post]
func (s *Server) handleReissue(w http.ResponseWriter, r *http.Request) {
	// An unreadable body is treated like an empty one and fails validation.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		body = nil
	}

	issued, err := s.issuance.Reissue(r.Context(), rate.ClientID(r), body)
	if err != nil {
		var denied *issuance.DeniedError
		switch {
		case errors.As(err, &denied):
			writeRateLimit(w, denied.Notification, denied.RetryAfter)
		case errors.Is(err, issuance.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, codeBadRequest, err)
		case errors.Is(err, issuance.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, codeNotFound, err)
		case errors.Is(err, issuance.ErrGateUnavailable):
			writeUnavailable(w)
		default:
			writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not issue api key"))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"api_key":    issued.APIKey,
		"key_prefix": issued.Prefix,
		"issued_at":  issued.IssuedAt,
	})
}

// handleVerifyNonce godoc
//
//	@Summary		Request a verification nonce
//	@Description	Issue a nonce to include in a public tweet. Replaces any outstanding nonce for the account.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string}	true	"Account email"
//	@Success		200		{object}	map[string]any			"Nonce and expiry"
//	@Failure		404		{object}	map[string]string		"Unknown account"
//	@Failure		429		{object}	map[string]any			"Rate limited"
//	@Router			/api/verify/nonce [post]
func (s *Server) handleVerifyNonce(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, rate.ActionNonce) {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	account, ok := s.lookupAccount(r.Context(), w, req.Email)
	if !ok {
		return
	}
	nonce, err := s.auth.IssueNonce(r.Context(), account.ID)
	if err != nil {
		s.log.Error(r.Context(), "issue nonce", "account_id", account.ID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not issue nonce"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nonce":      nonce.Value,
		"expires_at": nonce.ExpiresAt.UTC(),
	})
}

// handleVerifyPromo godoc
//
//	@Summary		Verify with a promo code
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,code=string}	true	"Email and promo code"
//	@Success		200		{object}	map[string]any						"Verified"
//	@Failure		403		{object}	map[string]any						"Code not accepted"
//	@Router			/api/verify/promo [post]
func (s *Server) handleVerifyPromo(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, rate.ActionVerifyPromo) {
		return
	}
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	account, ok := s.lookupAccount(r.Context(), w, req.Email)
	if !ok {
		return
	}
	if !s.promo.IsValid(req.Code) {
		writeNotVerified(w, "promo code not accepted")
		return
	}
	s.markVerified(r.Context(), w, account, model.VerifiedViaPromo, "")
}

// handleVerifyTweet godoc
//
//	@Summary		Verify with a tweet
//	@Description	Check that the public tweet at tweet_url contains the account's outstanding nonce. On success the nonce is consumed and the author handle recorded.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,tweet_url=string}	true	"Email and tweet URL"
//	@Success		200		{object}	map[string]any							"Verified"
//	@Failure		403		{object}	map[string]any							"Nonce missing, expired or not found in tweet"
//	@Router			/api/verify/tweet [post]
func (s *Server) handleVerifyTweet(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, rate.ActionVerifyTweet) {
		return
	}
	var req struct {
		Email    string `json:"email"`
		TweetURL string `json:"tweet_url"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if strings.TrimSpace(req.TweetURL) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, errors.New("tweet_url required"))
		return
	}
	account, ok := s.lookupAccount(r.Context(), w, req.Email)
	if !ok {
		return
	}

	nonce, err := s.auth.ActiveNonce(r.Context(), account.ID)
	if err != nil {
		if errors.Is(err, auth.ErrNoNonce) || errors.Is(err, auth.ErrNonceExpired) {
			writeNotVerified(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not load nonce"))
		return
	}

	result := s.social.Verify(r.Context(), req.TweetURL, nonce.Value)
	if !result.OK {
		writeNotVerified(w, "nonce not found in tweet")
		return
	}
	if err := s.auth.ClearNonce(r.Context(), account.ID); err != nil {
		s.log.Warn(r.Context(), "clear nonce", "account_id", account.ID, "error", err)
	}
	s.markVerified(r.Context(), w, account, model.VerifiedViaTweet, result.Handle)
}

// handleMe godoc
//
//	@Summary		Describe the calling key
//	@Tags			Keys
//	@Produce		json
//	@Param			Authorization	header		string				true	"Bearer API key"
//	@Success		200				{object}	map[string]any		"Account bound to the key"
//	@Failure		401				{object}	map[string]string	"Missing or invalid key"
//	@Security		BearerAuth
//	@Router			/api/me [get]
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	account, err := s.store.GetAccount(r.Context(), verified.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, auth.ErrInvalidKey)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not load account"))
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

// handleAdminCreateAccount godoc
//
//	@Summary		Provision an account
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			X-Admin-Secret	header		string					true	"Admin secret"
//	@Param			account			body		object{email=string}	true	"Account email"
//	@Success		200				{object}	map[string]any			"Account created"
//	@Failure		401				{object}	map[string]string		"Invalid admin secret"
//	@Failure		409				{object}	map[string]string		"Email already registered"
//	@Router			/api/admin/accounts [post]
func (s *Server) handleAdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	email, ok := issuance.NormalizeEmail(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, issuance.ErrInvalidEmail)
		return
	}
	account := model.Account{Email: email, CreatedAt: s.now()}
	id, err := s.store.CreateAccount(r.Context(), &account)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, codeConflict, errors.New("email already registered"))
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not create account"))
		return
	}
	s.log.Info(r.Context(), "account created", "account_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "email": email})
}

// handleAdminListAccounts godoc
//
//	@Summary		List accounts
//	@Description	List accounts newest first. Keys are shown by prefix only.
//	@Tags			Admin
//	@Produce		json
//	@Param			X-Admin-Secret	header		string				true	"Admin secret"
//	@Param			limit			query		int					false	"Page size (1-200)"	default(50)
//	@Param			offset			query		int					false	"Offset"			default(0)
//	@Success		200				{object}	map[string]any		"Accounts and total count"
//	@Failure		401				{object}	map[string]string	"Invalid admin secret"
//	@Router			/api/admin/accounts [get]
func (s *Server) handleAdminListAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	accounts, total, err := s.store.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not list accounts"))
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views, "total": total})
}

// handleAdminDeleteAccount godoc
//
//	@Summary		Delete an account
//	@Description	Delete an account together with its key and any outstanding nonce.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			X-Admin-Secret	header		string					true	"Admin secret"
//	@Param			account			body		object{email=string}	true	"Account to delete"
//	@Success		200				{object}	map[string]bool			"Account deleted"
//	@Failure		401				{object}	map[string]string		"Invalid admin secret"
//	@Failure		404				{object}	map[string]string		"Account not found"
//	@Router			/api/admin/delete-account [post]
func (s *Server) handleAdminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	account, ok := s.lookupAccount(r.Context(), w, req.Email)
	if !ok {
		return
	}
	if err := s.store.DeleteAccount(r.Context(), account.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, issuance.ErrAccountNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not delete account"))
		return
	}
	s.log.Info(r.Context(), "account deleted", "account_id", account.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleGetStats godoc
//
//	@Summary		Get service statistics
//	@Tags			Stats
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Account, verification and key counts"
//	@Router			/api/stats [get]
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not load stats"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":          stats.Accounts,
		"verified_accounts": stats.VerifiedAccounts,
		"issued_keys":       stats.IssuedKeys,
		"promo_codes":       s.promo.Len(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    s.build.Version,
		"commit":     s.build.Commit,
		"build_time": s.build.BuildTime,
	})
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

func (s *Server) serveOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	// JSON is a subset of YAML, so the document decodes directly.
	var tree any
	if err := yaml.Unmarshal([]byte(doc), &tree); err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml; charset=utf-8")
	_, _ = w.Write(out)
}

// allowRateLimit consults the gate for action and writes the 429 or 503
// response itself when the request may not proceed.
func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string) bool {
	decision, err := s.gate.Check(r.Context(), action, rate.ClientID(r))
	if err != nil {
		writeUnavailable(w)
		return false
	}
	if !decision.OK {
		writeRateLimit(w, decision.Notification, decision.RetryAfter)
		return false
	}
	return true
}

func (s *Server) lookupAccount(ctx context.Context, w http.ResponseWriter, rawEmail string) (model.Account, bool) {
	email, ok := issuance.NormalizeEmail(rawEmail)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, issuance.ErrInvalidEmail)
		return model.Account{}, false
	}
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, issuance.ErrAccountNotFound)
			return model.Account{}, false
		}
		s.log.Error(ctx, "account lookup", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not load account"))
		return model.Account{}, false
	}
	return account, true
}

func (s *Server) markVerified(ctx context.Context, w http.ResponseWriter, account model.Account, via, handle string) {
	v := model.Verification{Via: via, Handle: handle, VerifiedAt: s.now()}
	if err := s.store.MarkVerified(ctx, account.ID, v); err != nil {
		s.log.Error(ctx, "mark verified", "account_id", account.ID, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not record verification"))
		return
	}
	s.log.Info(ctx, "account verified", "account_id", account.ID, "via", via)
	resp := map[string]any{"verified": true, "via": via}
	if handle != "" {
		resp["handle"] = handle
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (auth.Verified, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, errors.New("missing bearer api key"))
		return auth.Verified{}, false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	verified, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidKey) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, err)
			return auth.Verified{}, false
		}
		writeError(w, http.StatusInternalServerError, codeInternal, errors.New("could not authenticate"))
		return auth.Verified{}, false
	}
	return verified, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	got := r.Header.Get("X-Admin-Secret")
	if s.cfg.AdminSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, errors.New("unauthorized"))
		return false
	}
	return true
}

type accountView struct {
	ID          int64      `json:"account_id"`
	Email       string     `json:"email"`
	KeyPrefix   string     `json:"key_prefix,omitempty"`
	KeyIssuedAt *time.Time `json:"key_issued_at,omitempty"`
	Verified    bool       `json:"verified"`
	VerifiedVia string     `json:"verified_via,omitempty"`
	Handle      string     `json:"handle,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newAccountView(a model.Account) accountView {
	return accountView{
		ID:          a.ID,
		Email:       a.Email,
		KeyPrefix:   a.KeyPrefix,
		KeyIssuedAt: a.KeyIssuedAt,
		Verified:    a.Verified(),
		VerifiedVia: a.VerifiedVia,
		Handle:      a.Handle,
		VerifiedAt:  a.VerifiedAt,
		CreatedAt:   a.CreatedAt,
	}
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error(), "code": code})
}

func writeRateLimit(w http.ResponseWriter, notification string, retry time.Duration) {
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	if notification == "" {
		notification = "rate limit exceeded"
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       notification,
		"code":        codeRateLimited,
		"retry_after": secs,
	})
}

func writeUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, codeUnavailable, errors.New("service temporarily unavailable, please retry shortly"))
}

func writeNotVerified(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusForbidden, map[string]any{"verified": false, "error": reason})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, codeNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, errors.New("method not allowed"))
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
