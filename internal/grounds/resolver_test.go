package grounds

import (
	"context"
	"testing"

	mongoadapter "github.com/turfbook/ground-reservations/internal/adapters/mongo"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakePrimaryStore struct {
	docs map[primitive.ObjectID]*mongoadapter.GroundDoc
}

func (f *fakePrimaryStore) GetGround(ctx context.Context, id primitive.ObjectID) (*mongoadapter.GroundDoc, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return doc, nil
}

func TestResolve_PrimaryStore(t *testing.T) {
	id := primitive.NewObjectID()
	primary := &fakePrimaryStore{docs: map[primitive.ObjectID]*mongoadapter.GroundDoc{
		id: {
			Name:     "Victory Park Turf",
			Location: mongoadapter.LocationDoc{Address: "5 Lake View", CityName: "Nagpur", State: "Maharashtra"},
			Owner:    mongoadapter.OwnerDoc{Name: "S. Rao", Email: "s.rao@example.com"},
			Price:    1500,
			Features: []string{"floodlights"},
		},
	}}
	r := NewResolver(primary, observability.NewLogger())

	view := r.Resolve(context.Background(), id.Hex())
	if view.Placeholder {
		t.Fatal("expected a live record, got a placeholder")
	}
	if view.Name != "Victory Park Turf" || view.CityName != "Nagpur" {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestResolve_FallbackCatalog(t *testing.T) {
	r := NewResolver(&fakePrimaryStore{}, observability.NewLogger())

	view := r.Resolve(context.Background(), "greenfield-arena")
	if view.Placeholder {
		t.Fatal("expected a fallback record, got a placeholder")
	}
	if view.Name != "Greenfield Arena" {
		t.Errorf("unexpected name %q", view.Name)
	}
}

func TestResolve_ObjectIDShapedMissFallsThrough(t *testing.T) {
	// Shaped like a primary id but unknown there and absent from the catalog.
	r := NewResolver(&fakePrimaryStore{}, observability.NewLogger())

	ref := primitive.NewObjectID().Hex()
	view := r.Resolve(context.Background(), ref)
	if !view.Placeholder {
		t.Fatal("expected a placeholder")
	}
	if view.Name != ref {
		t.Errorf("placeholder should carry the raw reference as label, got %q", view.Name)
	}
	if view.Address != domain.Unavailable || view.OwnerEmail != domain.Unavailable {
		t.Error("placeholder fields must carry explicit unavailable markers")
	}
}

func TestResolve_NilPrimaryStore(t *testing.T) {
	// The expiry worker runs without a primary store; resolution must not panic.
	r := NewResolver(nil, observability.NewLogger())

	view := r.Resolve(context.Background(), "orphaned-ref")
	if !view.Placeholder {
		t.Fatal("expected a placeholder")
	}
}
