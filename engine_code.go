package otcauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kasali/otcauth/internal"
)

// RequestCode issues a fresh one-time code for (contact, purpose): rate
// limiter gate, purpose precondition against the identity store, then one
// transaction that invalidates any previous unused code and inserts the
// new one. The code is handed to the delivery channel after it is durably
// stored; a delivery failure is logged and does not fail the call.
func (e *Engine) RequestCode(ctx context.Context, contact string, purpose Purpose) (*RequestCodeResult, error) {
	if e == nil || e.codes == nil || e.limiter == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose", ErrContactInvalid)
	}

	contact = NormalizeContact(contact)
	if !ValidContact(contact) {
		return nil, ErrContactInvalid
	}

	decision, err := e.limiter.CheckAndIncrement(ctx,
		rateLimitKey(contact, purpose),
		e.config.RateLimit.MaxRequests,
		e.config.RateLimit.Window)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		e.metrics.Inc(MetricRateLimited)
		return nil, fmt.Errorf("%w: retry after %s", ErrRateLimited, decision.ResetAt.Format(time.RFC3339))
	}

	if err := e.checkPurposePrecondition(ctx, contact, purpose); err != nil {
		return nil, err
	}

	code, err := internal.NewNumericCode(e.config.Code.Length)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record := &OneTimeCode{
		Contact:     contact,
		Code:        code,
		Purpose:     purpose,
		ExpiresAt:   time.Now().Add(e.config.Code.TTL),
		MaxAttempts: e.config.Code.MaxAttempts,
	}
	if err := e.codes.Replace(ctx, record); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricCodeRequested)
	e.deliver(ctx, contact, code)

	return &RequestCodeResult{
		ExpiresIn: e.config.Code.TTL,
		RetryAt:   decision.ResetAt,
	}, nil
}

// VerifyCode checks a submitted code against the single valid record for
// (contact, purpose). Wrong submissions burn an attempt; the attempt
// budget is enforced before the comparison so an exhausted record stays
// dead even for the correct code. A match consumes the record.
func (e *Engine) VerifyCode(ctx context.Context, contact, code string, purpose Purpose) (*VerifyCodeResult, error) {
	if e == nil || e.codes == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose", ErrContactInvalid)
	}

	contact = NormalizeContact(contact)
	if !ValidContact(contact) {
		return nil, ErrContactInvalid
	}
	if len(code) != e.config.Code.Length {
		return nil, fmt.Errorf("%w: malformed code", ErrContactInvalid)
	}

	record, err := e.codes.FindValid(ctx, contact, purpose)
	if err != nil {
		return nil, err
	}

	if record.Attempts >= record.MaxAttempts {
		e.metrics.Inc(MetricCodeExhausted)
		return nil, ErrCodeExhausted
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		attempts, err := e.codes.IncrementAttempts(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		e.metrics.Inc(MetricCodeRejected)
		remaining := record.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, fmt.Errorf("%w: %d attempts remaining", ErrCodeInvalid, remaining)
	}

	consumed, err := e.codes.MarkUsed(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// Lost the single-use race: someone else verified this code first.
		return nil, ErrCodeNotFound
	}

	result := &VerifyCodeResult{Valid: true}
	if purpose == PurposeLogin {
		identity, err := e.identities.FindByContact(ctx, contact)
		if err != nil {
			if errors.Is(err, ErrContactNotFound) {
				return nil, ErrContactNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		result.IdentityHint = identity
	}

	e.metrics.Inc(MetricCodeVerified)
	return result, nil
}

func (e *Engine) checkPurposePrecondition(ctx context.Context, contact string, purpose Purpose) error {
	switch purpose {
	case PurposeSignup, PurposeLogin:
	default:
		return nil
	}

	_, err := e.identities.FindByContact(ctx, contact)
	switch {
	case err == nil:
		if purpose == PurposeSignup {
			return ErrContactExists
		}
		return nil
	case errors.Is(err, ErrContactNotFound):
		if purpose == PurposeLogin {
			return ErrContactNotFound
		}
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// deliver hands the code to the external channel. Best-effort relative to
// the issuing request: the code is already durably stored and stays valid
// for its TTL even if delivery fails.
func (e *Engine) deliver(ctx context.Context, contact, code string) {
	if e.delivery == nil {
		return
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(e.config.Code.TTL.Minutes()))

	deliveryID, err := e.delivery.Send(ctx, contact, message)
	if err != nil {
		e.metrics.Inc(MetricDeliveryFailure)
		e.log.Warn("code delivery failed", zap.Error(err))
		return
	}
	e.log.Debug("code delivered", zap.String("delivery_id", deliveryID))
}

// CleanupExpiredCodes purges used and expired code rows older than the
// retention window. Idempotent and safe to run from multiple workers.
func (e *Engine) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	if e == nil || e.codes == nil {
		return 0, ErrEngineNotReady
	}
	return e.codes.DeleteExpired(ctx, e.config.Code.Retention, time.Now())
}
