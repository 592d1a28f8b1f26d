package repository

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NumberRepository persists the purchasable catalog. Allocate is a single
// FindOneAndDelete: the existence check and the removal are indivisible, so
// for any item id exactly one concurrent buyer wins and the rest see
// ErrItemUnavailable. Phone numbers are encrypted at rest.
type NumberRepository interface {
	List(ctx context.Context) ([]*models.NumberItem, error)
	Get(ctx context.Context, itemID string) (*models.NumberItem, error)
	Allocate(ctx context.Context, itemID string) (*models.NumberItem, error)
	Upsert(ctx context.Context, item *models.NumberItem) error
	Remove(ctx context.Context, itemID string) error
	CreateIndexes(ctx context.Context) error
}

type numberRepository struct {
	collection *mongo.Collection
	logger     *logrus.Logger
	encKey     []byte
}

func NewNumberRepository(db *mongo.Database, encryptionKey string, logger *logrus.Logger) NumberRepository {
	return &numberRepository{
		collection: db.Collection("numbers"),
		logger:     logger,
		encKey:     []byte(encryptionKey),
	}
}

func (r *numberRepository) List(ctx context.Context) ([]*models.NumberItem, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list numbers: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*models.NumberItem
	for cursor.Next(ctx) {
		var item models.NumberItem
		if err := cursor.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode number: %w", err)
		}

		if item.Encrypted {
			if err := r.decryptItem(&item); err != nil {
				r.logger.Errorf("Failed to decrypt number %s: %v", item.ItemID, err)
				continue
			}
		}

		items = append(items, &item)
	}

	return items, nil
}

func (r *numberRepository) Get(ctx context.Context, itemID string) (*models.NumberItem, error) {
	var item models.NumberItem
	err := r.collection.FindOne(ctx, bson.M{"item_id": itemID}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrItemUnavailable
		}
		return nil, fmt.Errorf("failed to find number: %w", err)
	}

	if item.Encrypted {
		if err := r.decryptItem(&item); err != nil {
			return nil, fmt.Errorf("failed to decrypt number: %w", err)
		}
	}

	return &item, nil
}

// Allocate removes the item if it is still present, in one step. Never split
// this into a read followed by a delete: that races with other buyers.
func (r *numberRepository) Allocate(ctx context.Context, itemID string) (*models.NumberItem, error) {
	var item models.NumberItem
	err := r.collection.FindOneAndDelete(ctx, bson.M{"item_id": itemID}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrItemUnavailable
		}
		return nil, fmt.Errorf("failed to allocate number: %w", err)
	}

	if item.Encrypted {
		if err := r.decryptItem(&item); err != nil {
			return nil, fmt.Errorf("failed to decrypt number: %w", err)
		}
	}

	return &item, nil
}

func (r *numberRepository) Upsert(ctx context.Context, item *models.NumberItem) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	stored := *item
	if err := r.encryptItem(&stored); err != nil {
		return fmt.Errorf("failed to encrypt number: %w", err)
	}
	stored.ID = primitive.NilObjectID

	filter := bson.M{"item_id": item.ItemID}
	update := bson.M{"$set": stored}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert number: %w", err)
	}

	return nil
}

func (r *numberRepository) Remove(ctx context.Context, itemID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"item_id": itemID})
	if err != nil {
		return fmt.Errorf("failed to remove number: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrItemUnavailable
	}

	return nil
}

func (r *numberRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "item_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "country", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create number indexes: %w", err)
	}

	return nil
}

func (r *numberRepository) encryptItem(item *models.NumberItem) error {
	if item.Number == "" {
		item.Encrypted = false
		return nil
	}

	encrypted, err := r.encrypt(item.Number)
	if err != nil {
		return err
	}

	item.Number = encrypted
	item.Encrypted = true
	return nil
}

func (r *numberRepository) decryptItem(item *models.NumberItem) error {
	decrypted, err := r.decrypt(item.Number)
	if err != nil {
		return err
	}

	item.Number = decrypted
	item.Encrypted = false
	return nil
}

func (r *numberRepository) encrypt(text string) (string, error) {
	block, err := aes.NewCipher(r.encKey)
	if err != nil {
		return "", err
	}

	plaintext := []byte(text)
	ciphertext := make([]byte, aes.BlockSize+len(plaintext))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], plaintext)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func (r *numberRepository) decrypt(cryptoText string) (string, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(cryptoText)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(r.encKey)
	if err != nil {
		return "", err
	}

	if len(ciphertext) < aes.BlockSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(ciphertext, ciphertext)

	return string(ciphertext), nil
}
