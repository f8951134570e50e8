package billing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoConfig holds connection settings for the MongoDB-backed store.
type MongoConfig struct {
	ConnectionURL  string        `env:"MONGODB_URL" envDefault:"mongodb://localhost:27017"`
	Database       string        `env:"MONGODB_DATABASE" envDefault:"paywall"`
	Collection     string        `env:"MONGODB_COLLECTION" envDefault:"subscriptions"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	RetryAttempts  int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

var errMongoNotReady = errors.New("billing: mongodb is not ready")

// ConnectMongo establishes a MongoDB connection, retrying per the config.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, error) {
	for range cfg.RetryAttempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout),
		)
		if err == nil {
			if err := client.Ping(ctx, nil); err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(errMongoNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, errMongoNotReady
}

// mongoRecord is the document shape; _id is the user identity.
type mongoRecord struct {
	UserID                 string    `bson:"_id"`
	Paid                   bool      `bson:"paid"`
	Status                 string    `bson:"status"`
	ProviderStatus         string    `bson:"provider_status,omitempty"`
	ProviderCustomerID     string    `bson:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string    `bson:"provider_subscription_id,omitempty"`
	CancelAtPeriodEnd      bool      `bson:"cancel_at_period_end"`
	CurrentPeriodEnd       int64     `bson:"current_period_end,omitempty"`
	UpdatedAt              time.Time `bson:"updated_at"`
}

// MongoStore persists subscription records as one document per user,
// updated with $set so each Apply is an atomic partial write.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore returns a Store backed by the given collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	if coll == nil {
		panic("billing: mongo collection is required")
	}
	return &MongoStore{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MongoStore) Get(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var doc mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	rec := &Record{
		UserID:                 doc.UserID,
		Paid:                   doc.Paid,
		Status:                 Status(doc.Status),
		ProviderStatus:         doc.ProviderStatus,
		ProviderCustomerID:     doc.ProviderCustomerID,
		ProviderSubscriptionID: doc.ProviderSubscriptionID,
		CancelAtPeriodEnd:      doc.CancelAtPeriodEnd,
		CurrentPeriodEnd:       doc.CurrentPeriodEnd,
		UpdatedAt:              doc.UpdatedAt,
	}
	if rec.Status == "" {
		rec.Status = StatusInactive
	}
	return rec, nil
}

func (s *MongoStore) Apply(ctx context.Context, userID string, patch Patch) error {
	if userID == "" {
		return ErrMissingUserID
	}

	set := bson.M{"updated_at": s.now()}
	if patch.Paid != nil {
		set["paid"] = *patch.Paid
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.ProviderStatus != nil {
		set["provider_status"] = *patch.ProviderStatus
	}
	if patch.ProviderCustomerID != nil {
		set["provider_customer_id"] = *patch.ProviderCustomerID
	}
	if patch.ProviderSubscriptionID != nil {
		set["provider_subscription_id"] = *patch.ProviderSubscriptionID
	}
	if patch.CancelAtPeriodEnd != nil {
		set["cancel_at_period_end"] = *patch.CancelAtPeriodEnd
	}
	if patch.CurrentPeriodEnd != nil {
		set["current_period_end"] = *patch.CurrentPeriodEnd
	}

	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports store reachability for readiness probes.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
