// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

// Package profile reads and updates user profiles in the remote MongoDB
// store. The gateway treats it as an external collaborator: plan resolution
// for quota checks, identity-to-email lookup, and subscription activation
// driven by payment webhooks.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultTimeout bounds each store operation
	DefaultTimeout = 10 * time.Second

	// DefaultCollection holds user profile documents
	DefaultCollection = "users"
)

// ErrProfileNotFound is returned when no profile matches the identity
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the stored user document, as far as the gateway reads it
type Profile struct {
	Identity           string `bson:"identity"`
	Email              string `bson:"email"`
	PlanName           string `bson:"plan_name"`
	SubscriptionActive bool   `bson:"subscription_active"`
}

// Config contains connection settings for the profile store
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store is a MongoDB-backed profile client
type Store struct {
	client  *mongo.Client
	col     *mongo.Collection
	timeout time.Duration
}

func (c *Config) validate() error {
	if c.URI == "" {
		return fmt.Errorf("profile store URI is required")
	}
	if c.Database == "" {
		return fmt.Errorf("profile store database is required")
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// Connect opens the MongoDB connection and verifies it with a ping
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to profile store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping profile store: %w", err)
	}

	return &Store{
		client:  client,
		col:     client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}, nil
}

// Lookup fetches the profile for an identity by filter query
func (s *Store) Lookup(ctx context.Context, identity string) (*Profile, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var p Profile
	err := s.col.FindOne(opCtx, bson.M{"identity": identity}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	return &p, nil
}

// PlanName resolves the identity's subscription plan name. Missing profiles
// and profiles without an active subscription resolve to the empty string;
// the caller falls back to the baseline tier.
func (s *Store) PlanName(ctx context.Context, identity string) (string, error) {
	p, err := s.Lookup(ctx, identity)
	if err == ErrProfileNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !p.SubscriptionActive {
		return "", nil
	}
	return p.PlanName, nil
}

// Email resolves the identity to the stored email address
func (s *Store) Email(ctx context.Context, identity string) (string, error) {
	p, err := s.Lookup(ctx, identity)
	if err != nil {
		return "", err
	}
	if p.Email == "" {
		return "", ErrProfileNotFound
	}
	return p.Email, nil
}

// ActivateSubscription upserts the subscription plan for the given email.
// Called from the payment webhook on checkout completion.
func (s *Store) ActivateSubscription(ctx context.Context, email, planName string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"plan_name":           planName,
			"subscription_active": true,
			"updated_at":          time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"identity": email,
		},
	}

	_, err := s.col.UpdateOne(opCtx, bson.M{"email": email}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}
	return nil
}

// Close disconnects from the store
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
