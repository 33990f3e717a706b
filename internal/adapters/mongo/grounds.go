package mongo

import (
	"context"
	"time"

	"github.com/turfbook/ground-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type GroundRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewGroundRepository(db *mongo.Database, logger observability.Logger) *GroundRepository {
	return &GroundRepository{
		coll:   db.Collection("grounds"),
		logger: logger,
	}
}

type GroundDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Location  LocationDoc        `bson:"location"`
	Owner     OwnerDoc           `bson:"owner"`
	Price     float64            `bson:"price"`
	Features  []string           `bson:"features"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type LocationDoc struct {
	Address     string    `bson:"address"`
	CityName    string    `bson:"city_name"`
	State       string    `bson:"state"`
	Coordinates []float64 `bson:"coordinates"`
}

type OwnerDoc struct {
	Name    string `bson:"name"`
	Contact string `bson:"contact"`
	Email   string `bson:"email"`
}

func (g *GroundRepository) GetGround(ctx context.Context, id primitive.ObjectID) (*GroundDoc, error) {
	var doc GroundDoc
	err := g.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *GroundRepository) CreateGround(ctx context.Context, doc GroundDoc) (primitive.ObjectID, error) {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	res, err := g.coll.InsertOne(ctx, doc)
	if err != nil {
		g.logger.Error("failed to create ground", err)
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}
