package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
)

func TestResolve_NewIDIsAnInsert(t *testing.T) {
	fake := store.NewFake()
	tx, err := fake.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	tenantID, id := uuid.New(), uuid.New()
	decision, err := Resolve(context.Background(), tx, tenantID, domain.EntityMoodLog, id)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !decision.IsNew {
		t.Error("Resolve() should report IsNew for an unseen id")
	}
	if decision.Existing != nil {
		t.Error("Resolve() should not return an existing record for an unseen id")
	}
}

func TestResolve_KnownIDIsAnUpdate(t *testing.T) {
	fake := store.NewFake()
	tenantID, userID, id := uuid.New(), uuid.New(), uuid.New()
	fake.SeedRecord(domain.EntityMoodLog, domain.Record{
		ID:              id,
		TenantID:        tenantID,
		UserID:          userID,
		ClientCreatedAt: time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
		Attrs:           map[string]any{"mood": "okay"},
	})

	tx, err := fake.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	decision, err := Resolve(context.Background(), tx, tenantID, domain.EntityMoodLog, id)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if decision.IsNew {
		t.Error("Resolve() should not report IsNew for a known id")
	}
	if decision.Existing == nil || decision.Existing.ID != id {
		t.Errorf("Resolve() Existing = %+v, want record %v", decision.Existing, id)
	}
}

func TestResolve_KnownIDInOtherTenantIsAnInsert(t *testing.T) {
	fake := store.NewFake()
	tenantA, tenantB, userID, id := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	fake.SeedRecord(domain.EntityMoodLog, domain.Record{
		ID:              id,
		TenantID:        tenantA,
		UserID:          userID,
		ClientCreatedAt: time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	})

	tx, err := fake.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	decision, err := Resolve(context.Background(), tx, tenantB, domain.EntityMoodLog, id)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !decision.IsNew {
		t.Error("Resolve() should not see a row that belongs to a different tenant")
	}
}
