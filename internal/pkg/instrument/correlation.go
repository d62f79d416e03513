package instrument

import "context"

type correlationIDKey struct{}

// CorrelationHeader is the HTTP header and message header carrying the id.
const CorrelationHeader = "X-Correlation-ID"

// SetCorrelationID returns a context carrying id.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// GetCorrelationID returns the id stored in ctx, or "" when absent.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
