package audit

import "context"

// Client identifies the caller an entry is attributed to.
type Client struct {
	UserAgent string
	URL       string
}

type clientKey struct{}

// WithClient attaches c to ctx for Log to pick up.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the Client stored in ctx, or the zero Client.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
