package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountRepository persists user accounts. Every balance mutation is a
// single conditional update, so the database serializes concurrent writers
// per account: a debit can never observe points below zero, a second deposit
// claim can never overwrite a pending one, and referred_by is set at most
// once.
type AccountRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Account, error)
	Get(ctx context.Context, userID string) (*models.Account, error)
	DebitPoints(ctx context.Context, userID string, amount int64) (*models.Account, error)
	CreditPoints(ctx context.Context, userID string, amount int64) error
	SetPendingDeposit(ctx context.Context, userID string, amount int64) error
	ResolveDeposit(ctx context.Context, userID string, approved bool) (int64, error)
	SetReferrer(ctx context.Context, userID, referrerID string) (bool, error)
	SetActiveNumber(ctx context.Context, userID, number string) error
	CreateIndexes(ctx context.Context) error
}

type accountRepository struct {
	collection *mongo.Collection
	logger     *logrus.Logger
}

func NewAccountRepository(db *mongo.Database, logger *logrus.Logger) AccountRepository {
	return &accountRepository{
		collection: db.Collection("accounts"),
		logger:     logger,
	}
}

func (r *accountRepository) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":         userID,
			"points":          int64(0),
			"deposit_total":   int64(0),
			"pending_deposit": int64(0),
			"active_number":   "",
			"referred_by":     "",
			"created_at":      now,
		},
		"$set": bson.M{"updated_at": now},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var account models.Account
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to get or create account: %w", err)
	}

	return &account, nil
}

func (r *accountRepository) Get(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// DebitPoints decrements points only when the balance covers the amount.
// The balance check and the decrement are one update, so concurrent debits
// on the same account cannot overdraw it.
func (r *accountRepository) DebitPoints(ctx context.Context, userID string, amount int64) (*models.Account, error) {
	filter := bson.M{
		"user_id": userID,
		"points":  bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"points": -amount},
		"$set": bson.M{"updated_at": time.Now()},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account models.Account
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to debit points: %w", err)
	}

	return &account, nil
}

func (r *accountRepository) CreditPoints(ctx context.Context, userID string, amount int64) error {
	update := bson.M{
		"$inc": bson.M{"points": amount},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrAccountNotFound
	}

	return nil
}

// SetPendingDeposit records a new claim only while no other claim is
// outstanding.
func (r *accountRepository) SetPendingDeposit(ctx context.Context, userID string, amount int64) error {
	filter := bson.M{
		"user_id":         userID,
		"pending_deposit": int64(0),
	}
	update := bson.M{
		"$set": bson.M{
			"pending_deposit": amount,
			"updated_at":      time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set pending deposit: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.Get(ctx, userID); err != nil {
			return err
		}
		return models.ErrClaimAlreadyPending
	}

	return nil
}

// ResolveDeposit clears the pending claim and, when approved, moves the
// amount into deposit_total in the same update (aggregation pipeline, so the
// move is atomic). Returns the resolved amount.
func (r *accountRepository) ResolveDeposit(ctx context.Context, userID string, approved bool) (int64, error) {
	filter := bson.M{
		"user_id":         userID,
		"pending_deposit": bson.M{"$gt": 0},
	}

	var update interface{}
	if approved {
		update = mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"deposit_total":   bson.M{"$add": bson.A{"$deposit_total", "$pending_deposit"}},
				"pending_deposit": 0,
				"updated_at":      time.Now(),
			}}},
		}
	} else {
		update = bson.M{
			"$set": bson.M{
				"pending_deposit": int64(0),
				"updated_at":      time.Now(),
			},
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.Account
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, models.ErrNoPendingDeposit
		}
		return 0, fmt.Errorf("failed to resolve deposit: %w", err)
	}

	return before.PendingDeposit, nil
}

// SetReferrer stores the referrer only when none is set yet. Returns true
// when this call actually set it, which is the referrer's one chance at the
// bonus credit.
func (r *accountRepository) SetReferrer(ctx context.Context, userID, referrerID string) (bool, error) {
	filter := bson.M{
		"user_id":     userID,
		"referred_by": "",
	}
	update := bson.M{
		"$set": bson.M{
			"referred_by": referrerID,
			"updated_at":  time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

func (r *accountRepository) SetActiveNumber(ctx context.Context, userID, number string) error {
	update := bson.M{
		"$set": bson.M{
			"active_number": number,
			"updated_at":    time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to set active number: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrAccountNotFound
	}

	return nil
}

func (r *accountRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "referred_by", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}

	return nil
}
