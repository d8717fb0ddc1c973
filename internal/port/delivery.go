package port

import "context"

// DeliveryHandle is the durable reference returned by the delivery channel.
type DeliveryHandle struct {
	ID       string
	Location string
}

type Deliverer interface {
	Deliver(ctx context.Context, ownerID int64, artifactPath, caption string) (*DeliveryHandle, error)
}
