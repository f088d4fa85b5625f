package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
)

// UserRepositoryMongo implements the domain.UserRepository collaborator the
// authentication core reads from.
type UserRepositoryMongo struct {
	collection *mongo.Collection
}

// NewUserRepositoryMongo creates the repository and ensures the unique
// username index.
func NewUserRepositoryMongo(ctx context.Context, db *mongo.Database) (*UserRepositoryMongo, error) {
	repo := &UserRepositoryMongo{
		collection: db.Collection(UsersCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("issue creating indexes for users collection (might already exist)")
	}

	return repo, nil
}

func (r *UserRepositoryMongo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepositoryMongo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepositoryMongo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("error looking up user")
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryMongo) Store(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("user with this username already exists")
		}
		log.Error().Err(err).Msg("error storing user")
		return err
	}
	return nil
}

var _ domain.UserRepository = (*UserRepositoryMongo)(nil)
