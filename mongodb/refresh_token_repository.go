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

// RefreshTokenRepositoryMongo implements domain.RefreshTokenRepository.
// All mutations are single-document (or single UpdateMany) writes, so the
// store's native atomicity is the only locking this subsystem relies on.
type RefreshTokenRepositoryMongo struct {
	collection *mongo.Collection
}

// NewRefreshTokenRepositoryMongo creates the repository and ensures its
// indexes. The TTL index on expires_at is a backstop; the periodic purge
// sweep remains the authoritative cleanup.
func NewRefreshTokenRepositoryMongo(ctx context.Context, db *mongo.Database) (*RefreshTokenRepositoryMongo, error) {
	repo := &RefreshTokenRepositoryMongo{
		collection: db.Collection(RefreshTokensCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}}, // users hold many tokens
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "revoked", Value: 1}},
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("issue creating indexes for refresh_tokens collection (might already exist)")
	}

	return repo, nil
}

func (r *RefreshTokenRepositoryMongo) Store(ctx context.Context, token *domain.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("refresh token with this value already exists")
		}
		log.Error().Err(err).Msg("error storing refresh token")
		return err
	}
	return nil
}

func (r *RefreshTokenRepositoryMongo) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *RefreshTokenRepositoryMongo) FindActiveByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	return r.findOne(ctx, bson.M{"token": token, "revoked": false})
}

func (r *RefreshTokenRepositoryMongo) findOne(ctx context.Context, filter bson.M) (*domain.RefreshToken, error) {
	var record domain.RefreshToken
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrTokenNotFound
		}
		log.Error().Err(err).Msg("error looking up refresh token")
		return nil, err
	}
	return &record, nil
}

func (r *RefreshTokenRepositoryMongo) ListActiveByUserID(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	filter := bson.M{"user_id": userID, "revoked": false}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("error listing refresh tokens")
		return nil, err
	}
	defer cursor.Close(ctx)

	var tokens []*domain.RefreshToken
	if err = cursor.All(ctx, &tokens); err != nil {
		log.Error().Err(err).Msg("error decoding listed refresh tokens")
		return nil, err
	}
	return tokens, nil
}

// Revoke sets revoked on the record. The one-way $set makes double revokes
// and revokes of absent tokens harmless.
func (r *RefreshTokenRepositoryMongo) Revoke(ctx context.Context, token string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		log.Error().Err(err).Msg("error revoking refresh token")
		return err
	}
	return nil
}

func (r *RefreshTokenRepositoryMongo) RevokeAllByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("error revoking user refresh tokens")
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *RefreshTokenRepositoryMongo) SetReplacedBy(ctx context.Context, oldToken, newToken string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token": oldToken},
		bson.M{"$set": bson.M{"replaced_by_token": newToken}},
	)
	if err != nil {
		log.Error().Err(err).Msg("error linking replacement token")
		return err
	}
	return nil
}

func (r *RefreshTokenRepositoryMongo) TouchLastAccessed(ctx context.Context, token string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"last_accessed_at": at}},
	)
	return err
}

func (r *RefreshTokenRepositoryMongo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": cutoff}})
	if err != nil {
		log.Error().Err(err).Msg("error purging expired refresh tokens")
		return 0, err
	}
	return result.DeletedCount, nil
}

var _ domain.RefreshTokenRepository = (*RefreshTokenRepositoryMongo)(nil)
