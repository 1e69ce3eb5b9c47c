package ports

import (
	"context"

	"github.com/openfleet/fleetd/core"
)

// Publisher emits workflow progress events to interested consumers.
type Publisher interface {
	PublishProgress(ctx context.Context, event core.ProgressEvent) error
}
