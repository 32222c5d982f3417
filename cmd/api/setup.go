package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quillway/quillway/internal/storage"
)

// createAccount provisions a new metered account and prints its API key.
// The key is shown exactly once; only the argon2 hash is stored.
func createAccount(store storage.Storage, name string, plan storage.Plan) error {
	switch plan {
	case storage.PlanTrial, storage.PlanBasic, storage.PlanPremium:
	default:
		return fmt.Errorf("unknown plan %q (trial, basic, premium)", plan)
	}

	key, err := storage.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("generate API key: %w", err)
	}
	hash, err := storage.HashKey(key)
	if err != nil {
		return fmt.Errorf("hash API key: %w", err)
	}

	now := time.Now().UTC()
	account := &storage.Account{
		ID:          uuid.NewString(),
		Name:        name,
		KeyHash:     hash,
		KeyPrefix:   storage.ExtractKeyPrefix(key),
		Plan:        plan,
		PeriodStart: now.Truncate(24 * time.Hour),
		IsActive:    true,
		CreatedAt:   now,
	}
	if err := store.CreateAccount(account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Println()
	fmt.Printf("Account created: %s (%s plan)\n", name, plan)
	fmt.Printf("Account ID:      %s\n", account.ID)
	fmt.Println()
	fmt.Println("API key (save it now, it will not be shown again):")
	fmt.Println()
	fmt.Printf("  %s\n", key)
	fmt.Println()
	return nil
}
