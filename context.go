package otcauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceClassContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// the session row created by login/signup.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for session
// device metadata.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceClass attaches a coarse device classification ("web",
// "mobile", ...) to ctx for session device metadata.
func WithDeviceClass(ctx context.Context, deviceClass string) context.Context {
	return context.WithValue(ctx, deviceClassContextKey{}, deviceClass)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func deviceClassFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	deviceClass, _ := ctx.Value(deviceClassContextKey{}).(string)
	return deviceClass
}
