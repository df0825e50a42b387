package adapter

import (
	"context"

	"jobflow/internal/domain/model"
)

// FlagPublisher fans a flag snapshot out to every connected client, across instances.
type FlagPublisher interface {
	Publish(ctx context.Context, flags model.FlagMap) error
}
