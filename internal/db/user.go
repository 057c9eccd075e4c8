package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

type userRow struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	FullName     string             `bson:"full_name"`
	IsActive     bool               `bson:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (r userRow) toModel() (models.User, error) {
	role := models.Role(r.Role)
	if !models.IsValidRole(role) {
		return models.User{}, fmt.Errorf("user %s has role %q", r.Username, r.Role)
	}
	return models.User{
		ID:           r.ID.Hex(),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         role,
		FullName:     r.FullName,
		IsActive:     r.IsActive,
		LastLogin:    r.LastLogin,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

// InsertUser inserts a new, active user into the database
func (s *MongoStore) InsertUser(ctx context.Context, user models.User) (*models.User, error) {
	if s.users == nil {
		return nil, ErrNilStore
	}
	now := time.Now()
	row := userRow{
		ID:           primitive.NewObjectID(),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		FullName:     user.FullName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.users.InsertOne(ctx, row); err != nil {
		return nil, err
	}
	out, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindUserByID finds a user by their ID
func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": objectID})
}

// FindUserByUsername finds a user by their username
func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

// FindUserByEmail finds a user by their email
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	if s.users == nil {
		return nil, ErrNilStore
	}
	var row userRow
	if err := s.users.FindOne(ctx, filter).Decode(&row); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin updates the last login time for a user
func (s *MongoStore) UpdateLastLogin(ctx context.Context, id string) error {
	if s.users == nil {
		return ErrNilStore
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	now := time.Now()
	_, err = s.users.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"last_login": now, "updated_at": now}},
	)
	return err
}
