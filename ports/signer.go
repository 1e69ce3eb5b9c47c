package ports

import (
	"context"
	"encoding/json"
)

// Signer delegates cryptographic signing of structured payloads. Every
// call is potentially slow: a remote implementation may need a full
// key-custody round trip including a passkey ceremony.
type Signer interface {
	// SignTypedData signs an EIP-712 typed-data payload and returns the
	// hex-encoded signature.
	SignTypedData(ctx context.Context, typedData json.RawMessage) (string, error)

	// SignUserOperation signs an account-abstraction user operation and
	// returns the hex-encoded signature.
	SignUserOperation(ctx context.Context, userOperation json.RawMessage) (string, error)
}
