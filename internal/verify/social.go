package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/alphabot-ai/keygate/internal/logging"
)

const (
	DefaultOEmbedEndpoint = "https://publish.twitter.com/oembed"
	DefaultOEmbedTimeout  = 5 * time.Second

	maxOEmbedBody = 1 << 20
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)

// Result is the outcome of a social check. Handle is empty when the author
// could not be determined, whatever OK says.
type Result struct {
	OK     bool
	Handle string
}

type oembedDocument struct {
	HTML      string `json:"html"`
	AuthorURL string `json:"author_url"`
}

// SocialVerifier proves control of a social account by finding a nonce in
// the embed markup of a public post. Each call makes one bounded request and
// keeps no state, so it is safe for concurrent use.
type SocialVerifier struct {
	endpoint string
	client   *http.Client
	log      logging.Logger
}

func NewSocialVerifier(endpoint string, timeout time.Duration, log logging.Logger) *SocialVerifier {
	if endpoint == "" {
		endpoint = DefaultOEmbedEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultOEmbedTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &SocialVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log.With("component", "verify"),
	}
}

// Verify fetches the oEmbed document for postURL and reports whether its
// html contains nonce as a literal substring. The check is plain
// containment: if the provider escapes characters in the nonce the check
// fails, which is why nonces are alphanumeric. Any fetch or decode problem
// yields a negative result rather than an error.
func (v *SocialVerifier) Verify(ctx context.Context, postURL, nonce string) Result {
	postURL = strings.TrimSpace(postURL)
	if postURL == "" {
		return Result{}
	}

	doc, ok := v.fetch(ctx, postURL)
	if !ok {
		return Result{}
	}
	return Result{
		OK:     nonce != "" && strings.Contains(doc.HTML, nonce),
		Handle: HandleFromProfileURL(doc.AuthorURL),
	}
}

func (v *SocialVerifier) fetch(ctx context.Context, postURL string) (oembedDocument, bool) {
	sep := "?"
	if strings.Contains(v.endpoint, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+sep+"url="+url.QueryEscape(postURL), nil)
	if err != nil {
		v.log.Warn(ctx, "oembed request", "error", err)
		return oembedDocument{}, false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn(ctx, "oembed fetch failed", "error", err)
		return oembedDocument{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.log.Info(ctx, "oembed rejected post", "status", resp.StatusCode)
		return oembedDocument{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOEmbedBody))
	if err != nil {
		v.log.Warn(ctx, "oembed read failed", "error", err)
		return oembedDocument{}, false
	}
	var doc oembedDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		v.log.Warn(ctx, "oembed decode failed", "error", err)
		return oembedDocument{}, false
	}
	return doc, true
}

// HandleFromProfileURL extracts a handle from an author profile URL such as
// https://twitter.com/Jack: the first non-empty path segment, without a
// leading "@", lower-cased. It returns "" when the result does not fit the
// 1–15 character [a-z0-9_] handle grammar.
func HandleFromProfileURL(profileURL string) string {
	profileURL = strings.TrimSpace(profileURL)
	if profileURL == "" {
		return ""
	}
	u, err := url.Parse(profileURL)
	if err != nil || u.Host == "" {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		handle := strings.ToLower(strings.TrimPrefix(seg, "@"))
		if handlePattern.MatchString(handle) {
			return handle
		}
		return ""
	}
	return ""
}
