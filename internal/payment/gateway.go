package payment

import "context"

// Intent is the gateway-side handshake for a card payment. ClientSecret
// goes back to the client app to finish the charge.
type Intent struct {
	ID           string
	ClientSecret string
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error)
	CancelIntent(ctx context.Context, id string) error
}
