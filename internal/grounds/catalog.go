package grounds

import "github.com/turfbook/ground-reservations/internal/domain"

// fallbackCatalog is the static second tier: seed/demo grounds that predate
// the primary store and are still referenced by old bookings.
func fallbackCatalog() map[string]domain.GroundView {
	views := []domain.GroundView{
		{
			Ref:          "greenfield-arena",
			Name:         "Greenfield Arena",
			Address:      "12 Stadium Road",
			CityName:     "Pune",
			State:        "Maharashtra",
			OwnerName:    "R. Deshmukh",
			OwnerContact: "+91 98220 11223",
			OwnerEmail:   "bookings@greenfieldarena.in",
			PricePerHour: 1200,
			Features:     []string{"floodlights", "artificial turf", "parking"},
		},
		{
			Ref:          "riverside-turf",
			Name:         "Riverside Turf",
			Address:      "Mill Lane, Near Old Bridge",
			CityName:     "Kochi",
			State:        "Kerala",
			OwnerName:    "T. Varghese",
			OwnerContact: "+91 98470 55410",
			OwnerEmail:   "riversideturf@gmail.com",
			PricePerHour: 900,
			Features:     []string{"natural grass", "changing rooms"},
		},
		{
			Ref:          "city-sports-complex",
			Name:         "City Sports Complex",
			Address:      "Sector 21, Ring Road",
			CityName:     "Indore",
			State:        "Madhya Pradesh",
			OwnerName:    "Municipal Sports Trust",
			OwnerContact: "+91 73140 90210",
			OwnerEmail:   "desk@citysportsindore.org",
			PricePerHour: 750,
			Features:     []string{"floodlights", "seating", "cafeteria"},
		},
	}

	m := make(map[string]domain.GroundView, len(views))
	for _, v := range views {
		m[v.Ref] = v
	}
	return m
}
