package domain

// GroundView is a display-ready ground record. It may come from the primary
// store, the static fallback catalog, or be synthesized when neither knows
// the reference; callers never need to care which.
type GroundView struct {
	Ref          string
	Name         string
	Address      string
	CityName     string
	State        string
	OwnerName    string
	OwnerContact string
	OwnerEmail   string
	PricePerHour float64
	Features     []string

	// Placeholder is set when the reference resolved nowhere and the view
	// carries "unavailable" markers instead of real data.
	Placeholder bool
}

const Unavailable = "unavailable"

// PlaceholderGround synthesizes a view for a reference that resolved
// nowhere. A ground can legitimately be deleted after a booking references
// it, so the result is valid data, not an error.
func PlaceholderGround(ref string) GroundView {
	return GroundView{
		Ref:          ref,
		Name:         ref,
		Address:      Unavailable,
		CityName:     Unavailable,
		State:        Unavailable,
		OwnerName:    Unavailable,
		OwnerContact: Unavailable,
		OwnerEmail:   Unavailable,
		PricePerHour: 0,
		Placeholder:  true,
	}
}
