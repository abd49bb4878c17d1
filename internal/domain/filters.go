package domain

import "fmt"

type AvailabilityBucket string

const (
	AvailabilityAll       AvailabilityBucket = "all"
	AvailabilityAvailable AvailabilityBucket = "available"
	AvailabilityBusy      AvailabilityBucket = "busy"
	AvailabilityOffline   AvailabilityBucket = "offline"
)

func ParseAvailabilityBucket(s string) (AvailabilityBucket, error) {
	switch b := AvailabilityBucket(s); b {
	case "":
		return AvailabilityAll, nil
	case AvailabilityAll, AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return b, nil
	default:
		return "", fmt.Errorf("parse availability: unknown bucket %q", s)
	}
}

// Caller-supplied view filters. An empty Vehicle matches every category.
type Filters struct {
	Vehicle      VehicleCategory
	Availability AvailabilityBucket
}

// Bucket classifies an entry: busy when it carries orders, otherwise
// available or offline according to the courier's active flag.
func (e *SnapshotEntry) Bucket() AvailabilityBucket {
	if e.Order != nil || e.Courier.AssignedOrders > 0 {
		return AvailabilityBusy
	}
	if e.Courier.Active {
		return AvailabilityAvailable
	}
	return AvailabilityOffline
}

func (f Filters) Matches(e *SnapshotEntry) bool {
	if f.Vehicle != "" && e.Courier.Vehicle != f.Vehicle {
		return false
	}
	switch f.Availability {
	case "", AvailabilityAll:
		return true
	default:
		return e.Bucket() == f.Availability
	}
}
