package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"membersync/internal/constants"
)

// EnsureContainerIndexes creates the indexes the container store queries by.
// Existing indexes are left alone.
func EnsureContainerIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.ContainerCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "store_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_containers_store_kind_created"),
		},
		{
			Keys: bson.D{{Key: "store_id", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().
				SetName("idx_containers_store_kind_automated").
				SetPartialFilterExpression(bson.D{{Key: "rule_set", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_containers_updated_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}
	return nil
}
