package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alphabot-ai/keygate/internal/logging"
)

// Actions throttled by keygate. Each action has its own budget.
const (
	ActionReissue     = "api.key.reissue"
	ActionNonce       = "verify.nonce"
	ActionVerifyPromo = "verify.promo"
	ActionVerifyTweet = "verify.tweet"
)

var (
	ErrUnavailable   = errors.New("rate limiter unavailable")
	ErrUnknownAction = errors.New("unknown rate limit action")
)

// Policy is the fixed-window budget for one action. A Limit of zero or less
// leaves the action unthrottled.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the gate's answer for one request. Notification is meant for
// the end user and is empty when OK is true.
type Decision struct {
	OK           bool
	Notification string
	RetryAfter   time.Duration
	Remaining    int
}

type Gate struct {
	limiter  Limiter
	policies map[string]Policy
	log      logging.Logger
}

func NewGate(limiter Limiter, policies map[string]Policy, log logging.Logger) *Gate {
	if log == nil {
		log = logging.Nop()
	}
	copied := make(map[string]Policy, len(policies))
	for action, p := range policies {
		copied[action] = p
	}
	return &Gate{limiter: limiter, policies: copied, log: log.With("component", "rate")}
}

// Check consumes one unit of the (action, clientID) budget. A limiter
// failure is returned as an error wrapping ErrUnavailable together with a
// denying decision; the gate never admits a request it could not count.
func (g *Gate) Check(ctx context.Context, action, clientID string) (Decision, error) {
	policy, ok := g.policies[action]
	if !ok {
		return Decision{OK: false, Notification: unavailableNotice}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if policy.Limit <= 0 {
		return Decision{OK: true}, nil
	}
	if clientID == "" {
		clientID = AnonymousClient
	}

	res, err := g.limiter.Allow(ctx, Key(action, clientID), policy.Limit, policy.Window)
	if err != nil {
		g.log.Warn(ctx, "rate limiter unavailable", "action", action, "error", err)
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Decision{OK: false, Notification: unavailableNotice}, err
	}
	if !res.Allowed {
		g.log.Info(ctx, "rate limited", "action", action, "client", clientID, "retry_after", res.RetryAfter)
		return Decision{
			OK:           false,
			Notification: deniedNotice(res.RetryAfter),
			RetryAfter:   res.RetryAfter,
		}, nil
	}
	return Decision{OK: true, Remaining: res.Remaining, RetryAfter: res.RetryAfter}, nil
}

// Key namespaces a client's counter by action so distinct actions never
// share a budget.
func Key(action, clientID string) string {
	return action + ":client:" + clientID
}

const unavailableNotice = "This action is temporarily unavailable. Please try again shortly."

func deniedNotice(retry time.Duration) string {
	secs := int(math.Ceil(retry.Seconds()))
	if secs <= 0 {
		return "Too many attempts. Please try again shortly."
	}
	if secs == 1 {
		return "Too many attempts. Please try again in 1 second."
	}
	return fmt.Sprintf("Too many attempts. Please try again in %d seconds.", secs)
}
