package orders

import (
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// Actor identifies who is asking for a status change.
type Actor string

const (
	ActorCoordinator Actor = "coordinator"
	ActorShopOwner   Actor = "shop_owner"
	ActorAdmin       Actor = "admin"
)

// edges lists every legal transition and the actors allowed to take it.
var edges = map[enums.OrderStatus]map[enums.OrderStatus][]Actor{
	enums.OrderStatusPendingPayment: {
		enums.OrderStatusPending:   {ActorCoordinator},
		enums.OrderStatusCancelled: {ActorCoordinator},
	},
	enums.OrderStatusPending: {
		enums.OrderStatusAccepted:  {ActorShopOwner},
		enums.OrderStatusCancelled: {ActorShopOwner, ActorAdmin},
	},
	enums.OrderStatusAccepted: {
		enums.OrderStatusPreparing: {ActorShopOwner},
		enums.OrderStatusCancelled: {ActorShopOwner, ActorAdmin},
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusReady:     {ActorShopOwner},
		enums.OrderStatusCancelled: {ActorShopOwner, ActorAdmin},
	},
	enums.OrderStatusReady: {
		enums.OrderStatusCompleted: {ActorShopOwner},
	},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to enums.OrderStatus) bool {
	_, ok := edges[from][to]
	return ok
}

// NextStatuses returns the statuses reachable from the given one.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	out := []enums.OrderStatus{}
	for _, candidate := range enums.OrderStatuses() {
		if CanTransition(from, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// CheckTransition validates the edge and the actor. Orders still awaiting
// payment are internal to checkout, so to any other actor their edges look
// illegal rather than forbidden.
func CheckTransition(from, to enums.OrderStatus, actor Actor) error {
	allowed, ok := edges[from][to]
	if !ok {
		return illegalTransition(from, to)
	}
	if from == enums.OrderStatusPendingPayment && actor != ActorCoordinator {
		return illegalTransition(from, to)
	}
	for _, candidate := range allowed {
		if candidate == actor {
			return nil
		}
	}
	return unauthorizedTransition(from, to, actor)
}
