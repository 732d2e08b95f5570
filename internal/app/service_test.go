package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"curator/api/internal/config"
	"curator/api/internal/store"
)

type fakeStore struct {
	createUserFn         func(context.Context, store.User) error
	getUserByIDFn        func(context.Context, string) (store.User, error)
	getUserByEmailFn     func(context.Context, string) (store.User, error)
	insertEntityFn       func(context.Context, store.Entity) error
	getEntityFn          func(context.Context, string, string) (store.Entity, error)
	listEntitiesFn       func(context.Context, string, string, int, int) ([]store.Entity, int, error)
	updateEntityDataFn   func(context.Context, string, string, map[string]any, string, string) error
	insertContributionFn func(context.Context, store.Contribution) error
	getContributionFn    func(context.Context, string) (store.Contribution, error)
	listContributionsFn  func(context.Context, store.ContributionFilter) ([]store.Contribution, int, error)
	approveFn            func(context.Context, string, string, string) (bool, error)
	rejectFn             func(context.Context, string, string, string, string) (bool, error)
	summaryCountsFn      func(context.Context) (int, int, int, error)
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "Tester", Role: "admin"}, nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) LookupRefreshSession(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(context.Context, string) error { return nil }
func (f *fakeStore) InsertEntity(ctx context.Context, entity store.Entity) error {
	if f.insertEntityFn != nil {
		return f.insertEntityFn(ctx, entity)
	}
	return nil
}
func (f *fakeStore) GetEntity(ctx context.Context, entityType, entityID string) (store.Entity, error) {
	if f.getEntityFn != nil {
		return f.getEntityFn(ctx, entityType, entityID)
	}
	return store.Entity{}, sql.ErrNoRows
}
func (f *fakeStore) ListEntities(ctx context.Context, entityType, query string, limit, offset int) ([]store.Entity, int, error) {
	if f.listEntitiesFn != nil {
		return f.listEntitiesFn(ctx, entityType, query, limit, offset)
	}
	return nil, 0, nil
}
func (f *fakeStore) UpdateEntityData(ctx context.Context, entityType, entityID string, data map[string]any, title, updatedBy string) error {
	if f.updateEntityDataFn != nil {
		return f.updateEntityDataFn(ctx, entityType, entityID, data, title, updatedBy)
	}
	return nil
}
func (f *fakeStore) InsertContribution(ctx context.Context, item store.Contribution) error {
	if f.insertContributionFn != nil {
		return f.insertContributionFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) GetContribution(ctx context.Context, contributionID string) (store.Contribution, error) {
	if f.getContributionFn != nil {
		return f.getContributionFn(ctx, contributionID)
	}
	return store.Contribution{}, sql.ErrNoRows
}
func (f *fakeStore) ListContributions(ctx context.Context, filter store.ContributionFilter) ([]store.Contribution, int, error) {
	if f.listContributionsFn != nil {
		return f.listContributionsFn(ctx, filter)
	}
	return nil, 0, nil
}
func (f *fakeStore) ApproveContribution(ctx context.Context, contributionID, reviewedBy, adminNotes string) (bool, error) {
	if f.approveFn != nil {
		return f.approveFn(ctx, contributionID, reviewedBy, adminNotes)
	}
	return true, nil
}
func (f *fakeStore) RejectContribution(ctx context.Context, contributionID, reviewedBy, rejectionReason, adminNotes string) (bool, error) {
	if f.rejectFn != nil {
		return f.rejectFn(ctx, contributionID, reviewedBy, rejectionReason, adminNotes)
	}
	return true, nil
}
func (f *fakeStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	if f.summaryCountsFn != nil {
		return f.summaryCountsFn(ctx)
	}
	return 0, 0, 0, nil
}

type fakeSnapshots struct {
	ensureFn  func(string, string, map[string]any, string) error
	commits   []string
	histories map[string][]store.SnapshotInfo
}

func (f *fakeSnapshots) EnsureEntityRepo(entityType, entityID string, baseline map[string]any, author string) error {
	if f.ensureFn != nil {
		return f.ensureFn(entityType, entityID, baseline, author)
	}
	return nil
}
func (f *fakeSnapshots) CommitSnapshot(entityType, entityID string, data map[string]any, author, message string) (store.SnapshotInfo, error) {
	f.commits = append(f.commits, entityType+"/"+entityID+": "+message)
	return store.SnapshotInfo{Hash: "abc123"}, nil
}
func (f *fakeSnapshots) History(entityType, entityID string, limit int) ([]store.SnapshotInfo, error) {
	if f.histories != nil {
		return f.histories[entityType+"/"+entityID], nil
	}
	return nil, nil
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg:       config.Config{JWTSecret: "test-secret", AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour},
		store:     fs,
		refresh:   fs,
		snapshots: &fakeSnapshots{},
	}
}

func reviewerSession() Session {
	return Session{UserID: "usr_admin", UserName: "Admin", Role: "admin"}
}

func contributorSession() Session {
	return Session{UserID: "usr_mara", UserName: "Mara", Role: "contributor"}
}

func seriesEntity() store.Entity {
	return store.Entity{
		ID:         "ent_1",
		EntityType: "series",
		Title:      "Cosmic Drift",
		Data: map[string]any{
			"title":    "Cosmic Drift",
			"episodes": float64(12),
			"synopsis": "A salvage crew drifts between derelict colony ships.",
		},
	}
}

func domainStatus(t *testing.T, err error) (int, string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Status, domainErr.Code
}

func TestCreateContributionFiltersAndDiffs(t *testing.T) {
	ctx := context.Background()
	var inserted *store.Contribution
	fs := &fakeStore{
		getEntityFn: func(_ context.Context, entityType, entityID string) (store.Entity, error) {
			if entityType == "series" && entityID == "ent_1" {
				return seriesEntity(), nil
			}
			return store.Entity{}, sql.ErrNoRows
		},
		insertContributionFn: func(_ context.Context, item store.Contribution) error {
			inserted = &item
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.CreateContribution(ctx, contributorSession(), CreateContributionInput{
		EntityType:   "series",
		EntityID:     "ent_1",
		Action:       "UPDATE",
		ProposedData: []byte(`{"title":"Cosmic Drift","episodes":13,"averageScore":99}`),
		Note:         "recount",
	})
	if err != nil {
		t.Fatalf("CreateContribution failed: %v", err)
	}
	if inserted == nil {
		t.Fatal("contribution was not inserted")
	}
	if inserted.Status != store.StatusPending {
		t.Errorf("status = %q, want PENDING", inserted.Status)
	}
	if _, ok := inserted.ProposedData["averageScore"]; ok {
		t.Error("excluded field averageScore must be stripped before persistence")
	}
	changed, ok := payload["changedFields"].([]string)
	if !ok {
		t.Fatalf("changedFields missing from payload: %v", payload)
	}
	if len(changed) != 1 || changed[0] != "episodes" {
		t.Errorf("changedFields = %v, want [episodes]", changed)
	}
}

func TestCreateContributionOnlyExcludedChanges(t *testing.T) {
	fs := &fakeStore{
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
		insertContributionFn: func(context.Context, store.Contribution) error {
			t.Fatal("nothing should be persisted for an empty change set")
			return nil
		},
	}
	svc := newTestService(fs)

	// averageScore is admin-only and title is unchanged, so nothing remains.
	_, err := svc.CreateContribution(context.Background(), contributorSession(), CreateContributionInput{
		EntityType:   "series",
		EntityID:     "ent_1",
		Action:       "UPDATE",
		ProposedData: []byte(`{"title":"Cosmic Drift","averageScore":99}`),
	})
	status, code := domainStatus(t, err)
	if status != http.StatusUnprocessableEntity || code != "VALIDATION_ERROR" {
		t.Errorf("got %d %s, want 422 VALIDATION_ERROR", status, code)
	}
}

func TestCreateContributionValidation(t *testing.T) {
	fs := &fakeStore{
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
	}
	svc := newTestService(fs)
	ctx := context.Background()
	sess := contributorSession()

	cases := []struct {
		name  string
		input CreateContributionInput
	}{
		{"unknown entity type", CreateContributionInput{EntityType: "movie", EntityID: "e", Action: "UPDATE", ProposedData: []byte(`{"title":"x"}`)}},
		{"bad action", CreateContributionInput{EntityType: "series", EntityID: "ent_1", Action: "MERGE", ProposedData: []byte(`{"title":"x"}`)}},
		{"payload not an object", CreateContributionInput{EntityType: "series", EntityID: "ent_1", Action: "UPDATE", ProposedData: []byte(`[1,2]`)}},
		{"unknown field", CreateContributionInput{EntityType: "series", EntityID: "ent_1", Action: "UPDATE", ProposedData: []byte(`{"powerLevel":9001}`)}},
		{"note too long", CreateContributionInput{EntityType: "series", EntityID: "ent_1", Action: "UPDATE", ProposedData: []byte(`{"episodes":13}`), Note: strings.Repeat("x", 2001)}},
		{"missing entity id", CreateContributionInput{EntityType: "series", Action: "UPDATE", ProposedData: []byte(`{"episodes":13}`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateContribution(ctx, sess, tc.input)
			status, code := domainStatus(t, err)
			if status != http.StatusUnprocessableEntity || code != "VALIDATION_ERROR" {
				t.Errorf("got %d %s, want 422 VALIDATION_ERROR", status, code)
			}
		})
	}
}

func TestCreateContributionLockedEntity(t *testing.T) {
	fs := &fakeStore{
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			entity := seriesEntity()
			entity.Locked = true
			return entity, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateContribution(context.Background(), contributorSession(), CreateContributionInput{
		EntityType:   "series",
		EntityID:     "ent_1",
		Action:       "UPDATE",
		ProposedData: []byte(`{"episodes":13}`),
	})
	status, _ := domainStatus(t, err)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("locked entity: got %d, want 422", status)
	}
}

func TestCreateContributionUnknownEntity(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateContribution(context.Background(), contributorSession(), CreateContributionInput{
		EntityType:   "series",
		EntityID:     "ent_missing",
		Action:       "UPDATE",
		ProposedData: []byte(`{"episodes":13}`),
	})
	status, code := domainStatus(t, err)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Errorf("got %d %s, want 404 NOT_FOUND", status, code)
	}
}

func TestCreateContributionCreateAction(t *testing.T) {
	var inserted *store.Contribution
	fs := &fakeStore{
		insertContributionFn: func(_ context.Context, item store.Contribution) error {
			inserted = &item
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateContribution(context.Background(), contributorSession(), CreateContributionInput{
		EntityType:   "studio",
		Action:       "CREATE",
		ProposedData: []byte(`{"name":"Studio Ember","isAnimationStudio":true}`),
	})
	if err != nil {
		t.Fatalf("CreateContribution failed: %v", err)
	}
	if inserted == nil || inserted.EntityID == "" {
		t.Fatal("CREATE must assign an entity id")
	}
	if inserted.Action != "CREATE" {
		t.Errorf("action = %q", inserted.Action)
	}

	// CREATE without a proposed title is rejected.
	_, err = svc.CreateContribution(context.Background(), contributorSession(), CreateContributionInput{
		EntityType:   "studio",
		Action:       "CREATE",
		ProposedData: []byte(`{"isAnimationStudio":true}`),
	})
	if status, _ := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("missing title: got %d, want 422", status)
	}
}

func pendingContribution() store.Contribution {
	return store.Contribution{
		ID:              "con_1",
		EntityType:      "series",
		EntityID:        "ent_1",
		Action:          "UPDATE",
		ProposedData:    map[string]any{"episodes": float64(13)},
		ProposedOrder:   []string{"episodes"},
		ContributorID:   "usr_mara",
		ContributorName: "Mara",
		Status:          store.StatusPending,
		CreatedAt:       time.Now(),
	}
}

func TestApproveContributionAppliesEntityFirst(t *testing.T) {
	var updatedData map[string]any
	var casCalled bool
	item := pendingContribution()

	fs := &fakeStore{
		getContributionFn: func(_ context.Context, id string) (store.Contribution, error) {
			if casCalled {
				approved := item
				approved.Status = store.StatusApproved
				approved.ReviewedBy = "Admin"
				return approved, nil
			}
			return item, nil
		},
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
		updateEntityDataFn: func(_ context.Context, entityType, entityID string, data map[string]any, title, updatedBy string) error {
			if casCalled {
				t.Error("entity write must happen before the status swap")
			}
			updatedData = data
			return nil
		},
		approveFn: func(_ context.Context, id, reviewedBy, adminNotes string) (bool, error) {
			casCalled = true
			return true, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.ApproveContribution(context.Background(), reviewerSession(), "con_1", "looks right")
	if err != nil {
		t.Fatalf("ApproveContribution failed: %v", err)
	}
	if !casCalled {
		t.Fatal("status swap never ran")
	}
	if updatedData == nil {
		t.Fatal("entity was not updated")
	}
	if updatedData["episodes"] != float64(13) {
		t.Errorf("episodes = %v, want 13", updatedData["episodes"])
	}
	if updatedData["synopsis"] == nil {
		t.Error("untouched fields must survive the merge")
	}
	if payload["status"] != store.StatusApproved {
		t.Errorf("payload status = %v, want APPROVED", payload["status"])
	}
}

func TestApproveContributionAlreadyReviewed(t *testing.T) {
	item := pendingContribution()
	item.Status = store.StatusApproved

	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return item, nil
		},
		updateEntityDataFn: func(context.Context, string, string, map[string]any, string, string) error {
			t.Fatal("terminal contribution must not touch the entity")
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.ApproveContribution(context.Background(), reviewerSession(), "con_1", "")
	status, code := domainStatus(t, err)
	if status != http.StatusConflict || code != "ALREADY_REVIEWED" {
		t.Errorf("got %d %s, want 409 ALREADY_REVIEWED", status, code)
	}
}

func TestApproveContributionLosesRace(t *testing.T) {
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return pendingContribution(), nil
		},
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
		approveFn: func(context.Context, string, string, string) (bool, error) {
			// Another reviewer flipped the row between our read and the swap.
			return false, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.ApproveContribution(context.Background(), reviewerSession(), "con_1", "")
	status, code := domainStatus(t, err)
	if status != http.StatusConflict || code != "ALREADY_REVIEWED" {
		t.Errorf("got %d %s, want 409 ALREADY_REVIEWED", status, code)
	}
}

func TestApproveContributionEntityWriteFails(t *testing.T) {
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return pendingContribution(), nil
		},
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
		updateEntityDataFn: func(context.Context, string, string, map[string]any, string, string) error {
			return errors.New("connection reset")
		},
		approveFn: func(context.Context, string, string, string) (bool, error) {
			t.Fatal("status must not flip when the entity write fails")
			return false, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ApproveContribution(context.Background(), reviewerSession(), "con_1", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestApproveContributionCreateInsertsEntity(t *testing.T) {
	item := pendingContribution()
	item.Action = "CREATE"
	item.EntityID = "ent_new"
	item.ProposedData = map[string]any{"name": "Studio Ember", "isAnimationStudio": true}
	item.ProposedOrder = []string{"name", "isAnimationStudio"}
	item.EntityType = "studio"

	var insertedEntity *store.Entity
	approved := false
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			current := item
			if approved {
				current.Status = store.StatusApproved
			}
			return current, nil
		},
		insertEntityFn: func(_ context.Context, entity store.Entity) error {
			insertedEntity = &entity
			return nil
		},
		approveFn: func(context.Context, string, string, string) (bool, error) {
			approved = true
			return true, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ApproveContribution(context.Background(), reviewerSession(), "con_1", ""); err != nil {
		t.Fatalf("ApproveContribution failed: %v", err)
	}
	if insertedEntity == nil {
		t.Fatal("CREATE approval must insert the entity")
	}
	if insertedEntity.Title != "Studio Ember" {
		t.Errorf("title = %q", insertedEntity.Title)
	}
	if insertedEntity.ID != "ent_new" {
		t.Errorf("id = %q", insertedEntity.ID)
	}
}

func TestRejectContribution(t *testing.T) {
	item := pendingContribution()
	var rejected bool
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			current := item
			if rejected {
				current.Status = store.StatusRejected
				current.RejectionReason = "wrong count"
			}
			return current, nil
		},
		rejectFn: func(_ context.Context, id, reviewedBy, reason, adminNotes string) (bool, error) {
			if reason != "wrong count" {
				t.Errorf("reason = %q", reason)
			}
			rejected = true
			return true, nil
		},
		updateEntityDataFn: func(context.Context, string, string, map[string]any, string, string) error {
			t.Fatal("reject must never touch the entity")
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.RejectContribution(context.Background(), reviewerSession(), "con_1", "wrong count", "")
	if err != nil {
		t.Fatalf("RejectContribution failed: %v", err)
	}
	if payload["status"] != store.StatusRejected {
		t.Errorf("status = %v, want REJECTED", payload["status"])
	}
}

func TestRejectContributionRequiresReason(t *testing.T) {
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return pendingContribution(), nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.RejectContribution(context.Background(), reviewerSession(), "con_1", "   ", "")
	status, code := domainStatus(t, err)
	if status != http.StatusUnprocessableEntity || code != "VALIDATION_ERROR" {
		t.Errorf("got %d %s, want 422 VALIDATION_ERROR", status, code)
	}
}

func TestRejectContributionAlreadyReviewed(t *testing.T) {
	item := pendingContribution()
	item.Status = store.StatusRejected
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return item, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.RejectContribution(context.Background(), reviewerSession(), "con_1", "again", "")
	status, code := domainStatus(t, err)
	if status != http.StatusConflict || code != "ALREADY_REVIEWED" {
		t.Errorf("got %d %s, want 409 ALREADY_REVIEWED", status, code)
	}
}

func TestReviewContributionRecomputesDiff(t *testing.T) {
	// The entity moved on after submission: episodes is already 13, so the
	// review diff collapses to nothing.
	entity := seriesEntity()
	entity.Data["episodes"] = float64(13)

	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return pendingContribution(), nil
		},
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return entity, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.ReviewContribution(context.Background(), "con_1")
	if err != nil {
		t.Fatalf("ReviewContribution failed: %v", err)
	}
	changes, ok := payload["changes"].([]map[string]any)
	if !ok {
		t.Fatalf("changes missing: %v", payload)
	}
	if len(changes) != 0 {
		t.Errorf("stale contribution should diff to empty, got %v", changes)
	}
	if payload["entityTitle"] != "Cosmic Drift" {
		t.Errorf("entityTitle = %v", payload["entityTitle"])
	}
}

func TestReviewContributionOrdersByProposal(t *testing.T) {
	item := pendingContribution()
	item.ProposedData = map[string]any{
		"synopsis": "New synopsis.",
		"episodes": float64(24),
		"title":    "Cosmic Drift II",
	}
	item.ProposedOrder = []string{"synopsis", "episodes", "title"}

	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return item, nil
		},
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.ReviewContribution(context.Background(), "con_1")
	if err != nil {
		t.Fatalf("ReviewContribution failed: %v", err)
	}
	changes := payload["changes"].([]map[string]any)
	got := make([]string, 0, len(changes))
	for _, change := range changes {
		got = append(got, change["field"].(string))
	}
	want := []string{"synopsis", "episodes", "title"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("change order = %v, want %v", got, want)
	}
	for _, change := range changes {
		if change["field"] == "episodes" && change["category"] != "RELEASE_INFO" {
			t.Errorf("episodes category = %v", change["category"])
		}
	}
}

func TestContributionNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.GetContribution(context.Background(), "con_ghost")
	status, code := domainStatus(t, err)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Errorf("got %d %s, want 404 NOT_FOUND", status, code)
	}
}

func TestListContributionsValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.ListContributions(context.Background(), store.ContributionFilter{Status: "WAITING"})
	if status, _ := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("bad status filter: got %d, want 422", status)
	}

	_, err = svc.ListContributions(context.Background(), store.ContributionFilter{EntityType: "movie"})
	if status, _ := domainStatus(t, err); status != http.StatusUnprocessableEntity {
		t.Errorf("bad entity type filter: got %d, want 422", status)
	}
}

func TestBuildReport(t *testing.T) {
	fs := &fakeStore{
		getContributionFn: func(context.Context, string) (store.Contribution, error) {
			return pendingContribution(), nil
		},
		getEntityFn: func(context.Context, string, string) (store.Entity, error) {
			return seriesEntity(), nil
		},
	}
	svc := newTestService(fs)

	report, err := svc.BuildReport(context.Background(), "con_1")
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}
	if report.EntityTitle != "Cosmic Drift" {
		t.Errorf("entity title = %q", report.EntityTitle)
	}
	if len(report.Changes) != 1 || report.Changes[0].Field != "episodes" {
		t.Errorf("changes = %+v", report.Changes)
	}
	if report.Changes[0].Proposed != "13" {
		t.Errorf("proposed = %q, want 13", report.Changes[0].Proposed)
	}
}
