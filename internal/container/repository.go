package container

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"membersync/internal/constants"
	"membersync/pkg/errors"
	"membersync/pkg/metrics"
	"membersync/pkg/rules"
)

// MongoRepository stores containers and their rule sets in MongoDB. Every
// query is scoped by store_id.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(constants.ContainerCollection),
	}
}

func (r *MongoRepository) Create(ctx context.Context, c *Container) (err error) {
	defer observe("create_container", time.Now(), &err)

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.RuleSet != nil {
		c.RuleSet.Logic = c.RuleSet.Logic.Normalize()
	}

	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrConflict.WithDetail("container_id", c.ID)
		}
		return fmt.Errorf("failed to create container: %w", err)
	}

	return nil
}

func (r *MongoRepository) Get(ctx context.Context, storeID, id string) (c *Container, err error) {
	defer observe("get_container", time.Now(), &err)

	filter := bson.M{"_id": id, "store_id": storeID}

	var found Container
	err = r.collection.FindOne(ctx, filter).Decode(&found)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound.WithDetail("container_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}

	return &found, nil
}

// List returns the containers of a store, optionally restricted to one kind.
func (r *MongoRepository) List(ctx context.Context, storeID string, kind Kind) ([]Container, error) {
	filter := bson.M{"store_id": storeID}
	if kind != "" {
		filter["kind"] = kind
	}
	return r.find(ctx, "list_containers", filter)
}

// ListAutomatedContainers returns the rule-bearing containers of one kind in
// a store, oldest first.
func (r *MongoRepository) ListAutomatedContainers(ctx context.Context, storeID string, kind Kind) ([]Container, error) {
	filter := bson.M{
		"store_id": storeID,
		"kind":     kind,
		"rule_set": bson.M{"$exists": true, "$ne": nil},
	}
	return r.find(ctx, "list_automated_containers", filter)
}

func (r *MongoRepository) find(ctx context.Context, operation string, filter bson.M) (containers []Container, err error) {
	defer observe(operation, time.Now(), &err)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer cursor.Close(ctx)

	containers = make([]Container, 0)
	if err := cursor.All(ctx, &containers); err != nil {
		return nil, fmt.Errorf("failed to decode containers: %w", err)
	}

	return containers, nil
}

// SetRuleSet replaces the rule set of a container. A nil rule set turns the
// container back into a manual one and keeps its current members.
func (r *MongoRepository) SetRuleSet(ctx context.Context, storeID, id string, rs *rules.RuleSet) (c *Container, err error) {
	defer observe("set_rule_set", time.Now(), &err)

	filter := bson.M{"_id": id, "store_id": storeID}
	now := time.Now().UTC()

	var update bson.M
	if rs == nil {
		update = bson.M{
			"$set":   bson.M{"updated_at": now},
			"$unset": bson.M{"rule_set": ""},
		}
	} else {
		normalized := *rs
		normalized.Logic = normalized.Logic.Normalize()
		update = bson.M{"$set": bson.M{"rule_set": normalized, "updated_at": now}}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Container
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound.WithDetail("container_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rule set: %w", err)
	}

	return &updated, nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery(constants.ServiceName, "mongodb", operation, start, *err)
}
