package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"curator/api/internal/auth"
	"curator/api/internal/authpw"
	"curator/api/internal/config"
	"curator/api/internal/contribution"
	"curator/api/internal/diff"
	"curator/api/internal/email"
	"curator/api/internal/export"
	"curator/api/internal/media"
	"curator/api/internal/rbac"
	"curator/api/internal/search"
	"curator/api/internal/session"
	"curator/api/internal/store"
	"curator/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// CreateContributionInput is the submission payload. ProposedData stays raw
// until the orchestrator extracts its key order, which the stored diff order
// follows.
type CreateContributionInput struct {
	EntityType   string          `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Action       string          `json:"action"`
	ProposedData json.RawMessage `json:"proposedData"`
	Note         string          `json:"note"`
}

// DraftInput is the recoverable edit-session state a client checkpoints.
type DraftInput struct {
	Action     string         `json:"action"`
	Categories []string       `json:"categories"`
	Fields     map[string]any `json:"fields"`
	FieldOrder []string       `json:"fieldOrder"`
	Note       string         `json:"note"`
}

type dataStore interface {
	Ping(ctx context.Context) error
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	InsertEntity(context.Context, store.Entity) error
	GetEntity(context.Context, string, string) (store.Entity, error)
	ListEntities(context.Context, string, string, int, int) ([]store.Entity, int, error)
	UpdateEntityData(context.Context, string, string, map[string]any, string, string) error
	InsertContribution(context.Context, store.Contribution) error
	GetContribution(context.Context, string) (store.Contribution, error)
	ListContributions(context.Context, store.ContributionFilter) ([]store.Contribution, int, error)
	ApproveContribution(ctx context.Context, contributionID, reviewedBy, adminNotes string) (bool, error)
	RejectContribution(ctx context.Context, contributionID, reviewedBy, rejectionReason, adminNotes string) (bool, error)
	SummaryCounts(context.Context) (int, int, int, error)
}

type refreshStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type draftStore interface {
	SaveDraft(ctx context.Context, userID string, draft contribution.Draft) error
	LoadDraft(ctx context.Context, userID string, entityType contribution.EntityType, entityID string) (contribution.Draft, error)
	ClearDraft(ctx context.Context, userID string, entityType contribution.EntityType, entityID string) error
}

type snapshotService interface {
	EnsureEntityRepo(entityType, entityID string, baseline map[string]any, author string) error
	CommitSnapshot(entityType, entityID string, data map[string]any, author, message string) (store.SnapshotInfo, error)
	History(entityType, entityID string, limit int) ([]store.SnapshotInfo, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	refresh   refreshStore
	drafts    draftStore
	snapshots snapshotService
	search    *search.Service
	mailer    *email.Service
	media     *media.Store
	exporter  *export.Service
	passwords *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, snapshots snapshotService) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		refresh:   dataStore,
		snapshots: snapshots,
		exporter:  export.NewService(),
		passwords: authpw.NewService(dataStore),
	}
}

// UseSessions switches refresh tokens and drafts to redis. Without it,
// refresh sessions stay in Postgres and drafts are unavailable.
func (s *Service) UseSessions(sessions *session.RedisStore) {
	if sessions == nil {
		return
	}
	s.refresh = sessions
	s.drafts = sessions
}

func (s *Service) UseSearch(svc *search.Service) { s.search = svc }

func (s *Service) UseMailer(svc *email.Service) { s.mailer = svc }

func (s *Service) UseMedia(mediaStore *media.Store) { s.media = mediaStore }

// AuthPasswordService exposes the email/password flow to the HTTP layer.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.passwords
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) MediaStore() *media.Store {
	return s.media
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ---- sessions ----

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.refresh.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// The redis store only carries the user id; rehydrate the rest.
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.refresh.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.refresh.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.refresh.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ---- catalog reads ----

func (s *Service) ListEntities(ctx context.Context, entityType, query string, limit, offset int) (map[string]any, error) {
	if entityType != "" && !contribution.ValidEntityType(contribution.EntityType(entityType)) {
		return nil, validationError("unknown entity type", map[string]any{"entityType": entityType})
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	entities, total, err := s.store.ListEntities(ctx, entityType, query, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entities))
	for _, entity := range entities {
		items = append(items, map[string]any{
			"id":         entity.ID,
			"entityType": entity.EntityType,
			"title":      entity.Title,
			"locked":     entity.Locked,
			"updatedBy":  entity.UpdatedBy,
			"updatedAt":  entity.UpdatedAt,
		})
	}
	return map[string]any{"items": items, "total": total, "limit": limit, "offset": offset}, nil
}

func (s *Service) GetEntity(ctx context.Context, entityType, entityID string) (map[string]any, error) {
	entity, err := s.loadEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":         entity.ID,
		"entityType": entity.EntityType,
		"title":      entity.Title,
		"data":       entity.Data,
		"locked":     entity.Locked,
		"updatedBy":  entity.UpdatedBy,
		"createdAt":  entity.CreatedAt,
		"updatedAt":  entity.UpdatedAt,
	}, nil
}

// EntityForm returns the editable fields grouped by category with the
// entity's current values, ready for the contribution wizard.
func (s *Service) EntityForm(ctx context.Context, entityType, entityID string) (map[string]any, error) {
	entity, err := s.loadEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	et := contribution.EntityType(entityType)
	categories := make([]map[string]any, 0)
	for _, category := range contribution.Categories(et) {
		fields := make([]map[string]any, 0)
		for _, name := range contribution.CategoryFields(et, category) {
			fields = append(fields, map[string]any{
				"name":  name,
				"value": entity.Data[name],
			})
		}
		categories = append(categories, map[string]any{
			"id":     string(category),
			"fields": fields,
		})
	}

	return map[string]any{
		"entityType": entity.EntityType,
		"entityId":   entity.ID,
		"title":      entity.Title,
		"locked":     entity.Locked,
		"categories": categories,
	}, nil
}

func (s *Service) EntityHistory(ctx context.Context, entityType, entityID string) (map[string]any, error) {
	if _, err := s.loadEntity(ctx, entityType, entityID); err != nil {
		return nil, err
	}

	snapshots, err := s.snapshots.History(entityType, entityID, 50)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(snapshots))
	for _, snap := range snapshots {
		items = append(items, map[string]any{
			"hash":      snap.Hash,
			"message":   snap.Message,
			"author":    snap.Author,
			"createdAt": snap.CreatedAt,
		})
	}
	return map[string]any{"items": items}, nil
}

// CategoryTable returns the static category layout for an entity kind.
func (s *Service) CategoryTable(entityType string) (map[string]any, error) {
	et := contribution.EntityType(entityType)
	if !contribution.ValidEntityType(et) {
		return nil, validationError("unknown entity type", map[string]any{"entityType": entityType})
	}

	categories := make([]map[string]any, 0)
	for _, category := range contribution.Categories(et) {
		categories = append(categories, map[string]any{
			"id":     string(category),
			"fields": contribution.CategoryFields(et, category),
		})
	}
	return map[string]any{"entityType": entityType, "categories": categories}, nil
}

func (s *Service) loadEntity(ctx context.Context, entityType, entityID string) (store.Entity, error) {
	if !contribution.ValidEntityType(contribution.EntityType(entityType)) {
		return store.Entity{}, validationError("unknown entity type", map[string]any{"entityType": entityType})
	}
	entity, err := s.store.GetEntity(ctx, entityType, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Entity{}, notFoundError("Entity not found")
	}
	if err != nil {
		return store.Entity{}, err
	}
	return entity, nil
}

// ---- drafts ----

func (s *Service) draftsOrErr() (draftStore, error) {
	if s.drafts == nil {
		return nil, domainError(503, "DRAFTS_UNAVAILABLE", "Draft storage is not configured", nil)
	}
	return s.drafts, nil
}

func (s *Service) SaveDraft(ctx context.Context, sess Session, entityType, entityID string, input DraftInput) (map[string]any, error) {
	drafts, err := s.draftsOrErr()
	if err != nil {
		return nil, err
	}

	et := contribution.EntityType(entityType)
	if !contribution.ValidEntityType(et) {
		return nil, validationError("unknown entity type", map[string]any{"entityType": entityType})
	}
	action := contribution.Action(strings.ToUpper(strings.TrimSpace(input.Action)))
	if !contribution.ValidAction(action) {
		return nil, validationError("action must be CREATE or UPDATE", nil)
	}
	if len(input.Note) > contribution.MaxNoteLength {
		return nil, validationError("note exceeds maximum length", map[string]any{"max": contribution.MaxNoteLength})
	}

	draft := contribution.NewDraft(et, entityID, action)
	for _, c := range input.Categories {
		draft = draft.Toggle(contribution.Category(c))
	}
	draft.Fields = input.Fields
	draft.FieldOrder = input.FieldOrder
	draft.Note = input.Note
	draft.UpdatedAt = time.Now()

	if err := drafts.SaveDraft(ctx, sess.UserID, draft); err != nil {
		return nil, err
	}
	return draftPayload(draft), nil
}

func (s *Service) GetDraft(ctx context.Context, sess Session, entityType, entityID string) (map[string]any, error) {
	drafts, err := s.draftsOrErr()
	if err != nil {
		return nil, err
	}
	draft, err := drafts.LoadDraft(ctx, sess.UserID, contribution.EntityType(entityType), entityID)
	if errors.Is(err, session.ErrDraftNotFound) {
		return nil, notFoundError("No draft saved for this entity")
	}
	if err != nil {
		return nil, err
	}
	return draftPayload(draft), nil
}

func (s *Service) DeleteDraft(ctx context.Context, sess Session, entityType, entityID string) error {
	drafts, err := s.draftsOrErr()
	if err != nil {
		return err
	}
	return drafts.ClearDraft(ctx, sess.UserID, contribution.EntityType(entityType), entityID)
}

func draftPayload(draft contribution.Draft) map[string]any {
	categories := make([]string, 0, len(draft.Categories))
	for _, c := range draft.Categories {
		categories = append(categories, string(c))
	}
	return map[string]any{
		"entityType": string(draft.EntityType),
		"entityId":   draft.EntityID,
		"action":     string(draft.Action),
		"categories": categories,
		"fields":     draft.Fields,
		"fieldOrder": draft.FieldOrder,
		"note":       draft.Note,
		"updatedAt":  draft.UpdatedAt,
	}
}

// ---- contributions ----

// CreateContribution runs the submission pipeline: strip admin-only fields,
// diff against the live entity, and persist a PENDING contribution only when
// the filtered payload still changes something.
func (s *Service) CreateContribution(ctx context.Context, sess Session, input CreateContributionInput) (map[string]any, error) {
	et := contribution.EntityType(input.EntityType)
	if !contribution.ValidEntityType(et) {
		return nil, validationError("unknown entity type", map[string]any{"entityType": input.EntityType})
	}
	action := contribution.Action(strings.ToUpper(strings.TrimSpace(input.Action)))
	if !contribution.ValidAction(action) {
		return nil, validationError("action must be CREATE or UPDATE", nil)
	}
	note := strings.TrimSpace(input.Note)
	if len(note) > contribution.MaxNoteLength {
		return nil, validationError("note exceeds maximum length", map[string]any{"max": contribution.MaxNoteLength})
	}

	order, err := diff.OrderedKeys(input.ProposedData)
	if err != nil {
		return nil, validationError("proposedData must be a JSON object", nil)
	}
	var payload map[string]any
	if err := json.Unmarshal(input.ProposedData, &payload); err != nil {
		return nil, validationError("proposedData must be a JSON object", nil)
	}

	filtered, filteredOrder := contribution.FilterExcluded(payload, order)

	var unknown []string
	for _, field := range filteredOrder {
		if _, ok := contribution.FieldCategory(et, field); !ok {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) > 0 {
		return nil, validationError("unknown fields for entity type", map[string]any{"fields": unknown})
	}

	var original map[string]any
	entityID := strings.TrimSpace(input.EntityID)
	var entityTitle string

	switch action {
	case contribution.ActionUpdate:
		if entityID == "" {
			return nil, validationError("entityId is required for UPDATE", nil)
		}
		entity, err := s.loadEntity(ctx, string(et), entityID)
		if err != nil {
			return nil, err
		}
		if entity.Locked {
			return nil, validationError("entity is locked for contributions", nil)
		}
		original = entity.Data
		entityTitle = entity.Title
	case contribution.ActionCreate:
		if entityID == "" {
			entityID = util.NewID("ent")
		} else if _, err := s.store.GetEntity(ctx, string(et), entityID); err == nil {
			return nil, validationError("entity already exists", map[string]any{"entityId": entityID})
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if title := titleFromData(filtered); title == "" {
			return nil, validationError("a CREATE contribution must propose a title", nil)
		}
		original = map[string]any{}
		entityTitle = titleFromData(filtered)
	}

	changed := diff.Changed(original, filtered, filteredOrder)
	if len(changed) == 0 {
		return nil, validationError("contribution contains no effective changes", nil)
	}

	item := store.Contribution{
		ID:              util.NewID("con"),
		EntityType:      string(et),
		EntityID:        entityID,
		Action:          string(action),
		ProposedData:    filtered,
		ProposedOrder:   filteredOrder,
		ContributorID:   sess.UserID,
		ContributorName: sess.UserName,
		ContributorNote: note,
		Status:          store.StatusPending,
	}
	if err := s.store.InsertContribution(ctx, item); err != nil {
		return nil, err
	}

	if s.drafts != nil {
		if err := s.drafts.ClearDraft(ctx, sess.UserID, et, input.EntityID); err != nil {
			log.Printf("app: clear draft after submit: %v", err)
		}
	}
	s.indexContribution(item, entityTitle)

	return map[string]any{
		"id":            item.ID,
		"entityType":    item.EntityType,
		"entityId":      item.EntityID,
		"action":        item.Action,
		"status":        item.Status,
		"changedFields": changed,
	}, nil
}

func (s *Service) GetContribution(ctx context.Context, contributionID string) (map[string]any, error) {
	item, err := s.lookupContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	return contributionPayload(item), nil
}

func (s *Service) ListContributions(ctx context.Context, filter store.ContributionFilter) (map[string]any, error) {
	if filter.Status != "" {
		switch filter.Status {
		case store.StatusPending, store.StatusApproved, store.StatusRejected:
		default:
			return nil, validationError("unknown status", map[string]any{"status": filter.Status})
		}
	}
	if filter.EntityType != "" && !contribution.ValidEntityType(contribution.EntityType(filter.EntityType)) {
		return nil, validationError("unknown entity type", map[string]any{"entityType": filter.EntityType})
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.store.ListContributions(ctx, filter)
	if err != nil {
		return nil, err
	}

	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, contributionPayload(item))
	}
	return map[string]any{"items": payloads, "total": total, "limit": filter.Limit, "offset": filter.Offset}, nil
}

// ReviewContribution builds the review screen payload: the contribution plus
// a diff recomputed against the entity as it is now. A submission that has
// gone stale shows its current effect, not the one at submit time.
func (s *Service) ReviewContribution(ctx context.Context, contributionID string) (map[string]any, error) {
	item, err := s.lookupContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}

	original, entityTitle := s.reviewBaseline(ctx, item)
	changed := diff.Changed(original, item.ProposedData, item.ProposedOrder)
	pairs := diff.Pairs(original, item.ProposedData, changed)

	et := contribution.EntityType(item.EntityType)
	changes := make([]map[string]any, 0, len(pairs))
	for _, pair := range pairs {
		category, _ := contribution.FieldCategory(et, pair.Field)
		changes = append(changes, map[string]any{
			"field":    pair.Field,
			"category": string(category),
			"original": pair.Original,
			"proposed": pair.Proposed,
		})
	}

	payload := contributionPayload(item)
	payload["entityTitle"] = entityTitle
	payload["changes"] = changes
	return payload, nil
}

// ApproveContribution applies the proposal to the entity, then flips the
// status with a compare-and-swap on PENDING. The entity write comes first;
// if it fails the contribution stays PENDING. A failed swap means another
// reviewer got there first.
func (s *Service) ApproveContribution(ctx context.Context, sess Session, contributionID, adminNotes string) (map[string]any, error) {
	item, err := s.lookupContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if item.Status != store.StatusPending {
		return nil, alreadyReviewedError()
	}

	var applied map[string]any
	var entityTitle string

	switch item.Action {
	case string(contribution.ActionCreate):
		applied = item.ProposedData
		entityTitle = titleFromData(applied)
		if err := s.store.InsertEntity(ctx, store.Entity{
			ID:         item.EntityID,
			EntityType: item.EntityType,
			Title:      entityTitle,
			Data:       applied,
			UpdatedBy:  sess.UserName,
		}); err != nil {
			return nil, fmt.Errorf("apply contribution %s: %w", item.ID, err)
		}
	default:
		entity, err := s.store.GetEntity(ctx, item.EntityType, item.EntityID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("Target entity no longer exists")
		}
		if err != nil {
			return nil, err
		}
		applied = make(map[string]any, len(entity.Data)+len(item.ProposedData))
		for k, v := range entity.Data {
			applied[k] = v
		}
		for k, v := range item.ProposedData {
			applied[k] = v
		}
		entityTitle = entity.Title
		if title := titleFromData(item.ProposedData); title != "" {
			entityTitle = title
		}
		if err := s.store.UpdateEntityData(ctx, item.EntityType, item.EntityID, applied, entityTitle, sess.UserName); err != nil {
			return nil, fmt.Errorf("apply contribution %s: %w", item.ID, err)
		}
	}

	swapped, err := s.store.ApproveContribution(ctx, item.ID, sess.UserName, strings.TrimSpace(adminNotes))
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, alreadyReviewedError()
	}

	s.recordSnapshot(item, applied, sess.UserName)
	s.indexEntity(store.Entity{ID: item.EntityID, EntityType: item.EntityType, Title: entityTitle, Data: applied})

	updated, err := s.lookupContribution(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	s.indexContribution(updated, entityTitle)
	s.notifyDecision(updated, entityTitle)

	return contributionPayload(updated), nil
}

// RejectContribution flips a PENDING contribution to REJECTED. The entity is
// never touched and the reason is mandatory.
func (s *Service) RejectContribution(ctx context.Context, sess Session, contributionID, rejectionReason, adminNotes string) (map[string]any, error) {
	reason := strings.TrimSpace(rejectionReason)
	if reason == "" {
		return nil, validationError("rejectionReason is required", nil)
	}

	item, err := s.lookupContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if item.Status != store.StatusPending {
		return nil, alreadyReviewedError()
	}

	swapped, err := s.store.RejectContribution(ctx, item.ID, sess.UserName, reason, strings.TrimSpace(adminNotes))
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, alreadyReviewedError()
	}

	_, entityTitle := s.reviewBaseline(ctx, item)
	updated, err := s.lookupContribution(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	s.indexContribution(updated, entityTitle)
	s.notifyDecision(updated, entityTitle)

	return contributionPayload(updated), nil
}

// BuildReport assembles the export payload for a contribution, reusing the
// review diff.
func (s *Service) BuildReport(ctx context.Context, contributionID string) (export.ReportData, error) {
	item, err := s.lookupContribution(ctx, contributionID)
	if err != nil {
		return export.ReportData{}, err
	}

	original, entityTitle := s.reviewBaseline(ctx, item)
	changed := diff.Changed(original, item.ProposedData, item.ProposedOrder)
	pairs := diff.Pairs(original, item.ProposedData, changed)

	et := contribution.EntityType(item.EntityType)
	changes := make([]export.ChangeRow, 0, len(pairs))
	for _, pair := range pairs {
		category, _ := contribution.FieldCategory(et, pair.Field)
		changes = append(changes, export.ChangeRow{
			Field:    pair.Field,
			Category: string(category),
			Original: pair.Original,
			Proposed: pair.Proposed,
		})
	}

	return export.ReportData{
		ContributionID:  item.ID,
		EntityType:      item.EntityType,
		EntityID:        item.EntityID,
		EntityTitle:     entityTitle,
		Action:          item.Action,
		Status:          item.Status,
		ContributorName: item.ContributorName,
		Note:            item.ContributorNote,
		AdminNotes:      item.AdminNotes,
		RejectionReason: item.RejectionReason,
		ReviewedBy:      item.ReviewedBy,
		CreatedAt:       item.CreatedAt,
		ReviewedAt:      item.ReviewedAt,
		Changes:         changes,
	}, nil
}

func (s *Service) ExportReport(ctx context.Context, contributionID string, format export.Format) (*export.Result, error) {
	data, err := s.BuildReport(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(data, format)
}

func (s *Service) RenderReportHTML(ctx context.Context, contributionID string) (string, error) {
	data, err := s.BuildReport(ctx, contributionID)
	if err != nil {
		return "", err
	}
	return export.RenderReportHTML(data)
}

func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	entities, pending, reviewed, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"entities":              entities,
		"pendingContributions":  pending,
		"reviewedContributions": reviewed,
	}, nil
}

func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(503, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(q), nil
}

func (s *Service) lookupContribution(ctx context.Context, contributionID string) (store.Contribution, error) {
	item, err := s.store.GetContribution(ctx, contributionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Contribution{}, notFoundError("Contribution not found")
	}
	if err != nil {
		return store.Contribution{}, err
	}
	return item, nil
}

// reviewBaseline resolves the diff baseline for a contribution: the current
// entity data for UPDATE, an empty object for CREATE or a vanished entity.
func (s *Service) reviewBaseline(ctx context.Context, item store.Contribution) (map[string]any, string) {
	if item.Action == string(contribution.ActionCreate) {
		return map[string]any{}, titleFromData(item.ProposedData)
	}
	entity, err := s.store.GetEntity(ctx, item.EntityType, item.EntityID)
	if err != nil {
		return map[string]any{}, titleFromData(item.ProposedData)
	}
	return entity.Data, entity.Title
}

func (s *Service) recordSnapshot(item store.Contribution, data map[string]any, author string) {
	if s.snapshots == nil {
		return
	}
	var err error
	if item.Action == string(contribution.ActionCreate) {
		err = s.snapshots.EnsureEntityRepo(item.EntityType, item.EntityID, data, author)
	} else {
		_, err = s.snapshots.CommitSnapshot(item.EntityType, item.EntityID, data, author, "approve "+item.ID)
	}
	if err != nil {
		log.Printf("app: snapshot for %s/%s: %v", item.EntityType, item.EntityID, err)
	}
}

func (s *Service) indexEntity(entity store.Entity) {
	if s.search == nil {
		return
	}
	synopsis, _ := entity.Data["synopsis"].(string)
	if synopsis == "" {
		synopsis, _ = entity.Data["description"].(string)
	}
	s.search.IndexEntity(search.EntityRecord{
		ID:         entity.ID,
		EntityType: entity.EntityType,
		Title:      entity.Title,
		Synopsis:   synopsis,
		Locked:     entity.Locked,
	})
}

func (s *Service) indexContribution(item store.Contribution, entityTitle string) {
	if s.search == nil {
		return
	}
	s.search.IndexContribution(search.ContributionRecord{
		ID:              item.ID,
		EntityType:      item.EntityType,
		EntityID:        item.EntityID,
		EntityTitle:     entityTitle,
		ContributorName: item.ContributorName,
		Note:            item.ContributorNote,
		Status:          item.Status,
	})
}

func (s *Service) notifyDecision(item store.Contribution, entityTitle string) {
	if !s.SMTPConfigured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		user, err := s.store.GetUserByID(ctx, item.ContributorID)
		if err != nil || user.Email == "" {
			return
		}
		if err := s.mailer.SendDecisionEmail(user.Email, user.DisplayName, entityTitle,
			strings.ToUpper(item.EntityType), item.Status, item.RejectionReason, ""); err != nil {
			log.Printf("app: decision email for %s: %v", item.ID, err)
		}
	}()
}

func contributionPayload(item store.Contribution) map[string]any {
	payload := map[string]any{
		"id":              item.ID,
		"entityType":      item.EntityType,
		"entityId":        item.EntityID,
		"action":          item.Action,
		"proposedData":    item.ProposedData,
		"proposedOrder":   item.ProposedOrder,
		"contributorId":   item.ContributorID,
		"contributorName": item.ContributorName,
		"note":            item.ContributorNote,
		"status":          item.Status,
		"adminNotes":      item.AdminNotes,
		"rejectionReason": item.RejectionReason,
		"reviewedBy":      item.ReviewedBy,
		"createdAt":       item.CreatedAt,
	}
	if item.ReviewedAt != nil {
		payload["reviewedAt"] = *item.ReviewedAt
	}
	return payload
}

func titleFromData(data map[string]any) string {
	for _, key := range []string{"title", "name"} {
		if title, ok := data[key].(string); ok && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
