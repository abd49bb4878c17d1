package domain

import "fmt"

type VehicleCategory string

const (
	VehicleMoto    VehicleCategory = "moto"
	VehicleCar     VehicleCategory = "car"
	VehicleBicycle VehicleCategory = "bicycle"
	VehicleVan     VehicleCategory = "van"
)

var vehicleCategories = map[VehicleCategory]struct{}{
	VehicleMoto:    {},
	VehicleCar:     {},
	VehicleBicycle: {},
	VehicleVan:     {},
}

func (v VehicleCategory) Valid() bool {
	_, ok := vehicleCategories[v]
	return ok
}

// ParseVehicleCategory validates a category received from the outside world.
// An empty string is not a category; callers use it to mean "any".
func ParseVehicleCategory(s string) (VehicleCategory, error) {
	v := VehicleCategory(s)
	if !v.Valid() {
		return "", fmt.Errorf("parse vehicle category: unknown category %q", s)
	}
	return v, nil
}

// Courier is a member of the delivery fleet as reported by the backend.
// ID never changes; Position and Active change between snapshots.
type Courier struct {
	ID             string
	Name           string
	Phone          string
	Vehicle        VehicleCategory
	Active         bool
	Position       *Coordinates
	Zones          []string
	AssignedOrders int
}
