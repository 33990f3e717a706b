package grounds

import (
	"context"

	mongoadapter "github.com/turfbook/ground-reservations/internal/adapters/mongo"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PrimaryStore is the live ground store. Lookups against it are only
// attempted when the reference is shaped like one of its ids.
type PrimaryStore interface {
	GetGround(ctx context.Context, id primitive.ObjectID) (*mongoadapter.GroundDoc, error)
}

// Resolver answers "what was booked" for any ground reference. Resolution
// order is fixed: primary store, static fallback catalog, synthesized
// placeholder. It never fails; a reference that resolves nowhere yields a
// placeholder view, because a ground can be deleted after bookings cite it.
type Resolver struct {
	primary  PrimaryStore
	fallback map[string]domain.GroundView
	logger   observability.Logger
}

func NewResolver(primary PrimaryStore, logger observability.Logger) *Resolver {
	return &Resolver{
		primary:  primary,
		fallback: fallbackCatalog(),
		logger:   logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref string) domain.GroundView {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil && r.primary != nil {
		doc, err := r.primary.GetGround(ctx, id)
		if err == nil {
			observability.GroundResolutions.WithLabelValues("primary").Inc()
			return viewFromDoc(ref, doc)
		}
		r.logger.WithField("ground_ref", ref).Debug("primary store miss", err)
	}

	if v, ok := r.fallback[ref]; ok {
		observability.GroundResolutions.WithLabelValues("fallback").Inc()
		return v
	}

	observability.GroundResolutions.WithLabelValues("placeholder").Inc()
	return domain.PlaceholderGround(ref)
}

func viewFromDoc(ref string, doc *mongoadapter.GroundDoc) domain.GroundView {
	return domain.GroundView{
		Ref:          ref,
		Name:         doc.Name,
		Address:      doc.Location.Address,
		CityName:     doc.Location.CityName,
		State:        doc.Location.State,
		OwnerName:    doc.Owner.Name,
		OwnerContact: doc.Owner.Contact,
		OwnerEmail:   doc.Owner.Email,
		PricePerHour: doc.Price,
		Features:     doc.Features,
	}
}
