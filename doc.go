// Package otcauth implements passwordless phone-based authentication:
// one-time-code issuance and verification, signed access/refresh token
// lifecycle, and per-user multi-device session management with a
// configurable session cap.
//
// The package is storage-backed, not a framework: callers provide a
// *gorm.DB for the code and session tables, a Redis client for the rate
// limiter, an [IdentityProvider] for user lookup/creation, and a
// [DeliveryChannel] that carries codes to the contact address. Everything
// is wired through [New] and the [Builder]; there is no package-level
// state.
//
// Typical flow:
//
//	eng, err := otcauth.New().
//		WithDB(db).
//		WithRedis(rdb).
//		WithIdentityProvider(users).
//		WithDeliveryChannel(sms).
//		Build()
//
//	eng.RequestCode(ctx, "+2348012345678", otcauth.PurposeLogin)
//	res, err := eng.Login(ctx, "+2348012345678", "483920")
package otcauth
