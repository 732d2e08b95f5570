package app

import (
	"context"
	"log"

	"golang.org/x/crypto/bcrypt"

	"curator/api/internal/store"
	"curator/api/internal/util"
)

// Bootstrap seeds a small demo catalog and a verified admin account when the
// database is empty, then warms the search index. Safe to call on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	_, total, err := s.store.ListEntities(ctx, "", "", 1, 0)
	if err != nil {
		return err
	}
	if total > 0 {
		if s.search != nil {
			go s.search.ReindexAllFromPG(context.Background())
		}
		return nil
	}

	admin, err := s.ensureAdmin(ctx)
	if err != nil {
		return err
	}

	seeds := []store.Entity{
		{
			ID:         "ent_seed_drift",
			EntityType: "series",
			Title:      "Cosmic Drift",
			Data: map[string]any{
				"title":        "Cosmic Drift",
				"nativeTitle":  "コズミック・ドリフト",
				"format":       "TV",
				"status":       "FINISHED",
				"season":       "SPRING",
				"seasonYear":   2024,
				"episodes":     12,
				"duration":     24,
				"startDate":    "2024-04-07",
				"endDate":      "2024-06-23",
				"synopsis":     "A salvage crew drifts between derelict colony ships, trading fuel for secrets.",
				"genres":       []any{"Sci-Fi", "Drama"},
				"source":       "ORIGINAL",
				"averageScore": 78,
			},
			UpdatedBy: admin.DisplayName,
		},
		{
			ID:         "ent_seed_teashop",
			EntityType: "series",
			Title:      "Teashop at the Edge of Town",
			Data: map[string]any{
				"title":      "Teashop at the Edge of Town",
				"format":     "TV",
				"status":     "RELEASING",
				"season":     "SUMMER",
				"seasonYear": 2026,
				"startDate":  "2026-07-04",
				"synopsis":   "Slice-of-life about a teashop that only appears to people who need it.",
				"genres":     []any{"Slice of Life"},
				"source":     "MANGA",
			},
			UpdatedBy: admin.DisplayName,
		},
		{
			ID:         "ent_seed_mara",
			EntityType: "character",
			Title:      "Mara Voss",
			Data: map[string]any{
				"name":        "Mara Voss",
				"gender":      "Female",
				"age":         "29",
				"description": "Captain of the salvage tug Magpie.",
			},
			UpdatedBy: admin.DisplayName,
		},
		{
			ID:         "ent_seed_studio",
			EntityType: "studio",
			Title:      "Studio Lantern",
			Data: map[string]any{
				"name":              "Studio Lantern",
				"isAnimationStudio": true,
				"description":       "Small studio known for hand-painted backgrounds.",
			},
			UpdatedBy: admin.DisplayName,
		},
	}

	for _, seed := range seeds {
		if err := s.store.InsertEntity(ctx, seed); err != nil {
			return err
		}
		if s.snapshots != nil {
			if err := s.snapshots.EnsureEntityRepo(seed.EntityType, seed.ID, seed.Data, admin.DisplayName); err != nil {
				return err
			}
		}
		s.indexEntity(seed)
	}

	// One pending contribution so the review queue is not empty on first run.
	pending := store.Contribution{
		ID:              util.NewID("con"),
		EntityType:      "series",
		EntityID:        "ent_seed_drift",
		Action:          "UPDATE",
		ProposedData:    map[string]any{"episodes": 13, "endDate": "2024-06-30"},
		ProposedOrder:   []string{"episodes", "endDate"},
		ContributorID:   admin.ID,
		ContributorName: admin.DisplayName,
		ContributorNote: "Recount including the broadcast special.",
		Status:          store.StatusPending,
	}
	if err := s.store.InsertContribution(ctx, pending); err != nil {
		return err
	}
	s.indexContribution(pending, "Cosmic Drift")

	log.Printf("app: seeded %d entities and 1 pending contribution", len(seeds))
	return nil
}

// ensureAdmin creates the default admin account used for first login.
// Credentials are for local development; production deployments replace them.
func (s *Service) ensureAdmin(ctx context.Context) (store.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, "admin@curator.local")
	if err == nil {
		return existing, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("curator-admin"), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, err
	}

	admin := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     "Admin",
		Email:           "admin@curator.local",
		PasswordHash:    string(hash),
		Role:            "admin",
		IsEmailVerified: true,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return store.User{}, err
	}
	return admin, nil
}
