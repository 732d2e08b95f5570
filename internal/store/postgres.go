package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified,
		nullIfEmpty(user.VerificationToken), user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, COALESCE(password_hash, ''), role, is_email_verified, COALESCE(verification_token, ''), verification_expires_at
		FROM users WHERE id=$1
	`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, COALESCE(password_hash, ''), role, is_email_verified, COALESCE(verification_token, ''), verification_expires_at
		FROM users WHERE LOWER(email)=LOWER($1)
	`, email))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsEmailVerified, &user.VerificationToken, &user.VerificationExpiresAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if affected == 0 {
		return errors.New("invalid or expired verification token")
	}
	return nil
}

// ---- sessions ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, COALESCE(u.password_hash, ''), u.role, u.is_email_verified, COALESCE(u.verification_token, ''), u.verification_expires_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, tokenHash))
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- entities ----

func (s *PostgresStore) InsertEntity(ctx context.Context, entity Entity) error {
	data, err := json.Marshal(entity.Data)
	if err != nil {
		return fmt.Errorf("marshal entity data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, entity_type, title, data, locked, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entity.ID, entity.EntityType, entity.Title, data, entity.Locked, entity.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, entityType, entityID string) (Entity, error) {
	var entity Entity
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entity_type, title, data, locked, COALESCE(updated_by, ''), created_at, updated_at
		FROM entities WHERE entity_type=$1 AND id=$2
	`, entityType, entityID).Scan(&entity.ID, &entity.EntityType, &entity.Title, &data,
		&entity.Locked, &entity.UpdatedBy, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return Entity{}, err
	}
	if err := json.Unmarshal(data, &entity.Data); err != nil {
		return Entity{}, fmt.Errorf("unmarshal entity data: %w", err)
	}
	return entity, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, entityType, query string, limit, offset int) ([]Entity, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if entityType != "" {
		args = append(args, entityType)
		where = append(where, fmt.Sprintf("entity_type=$%d", len(args)))
	}
	if query != "" {
		args = append(args, "%"+query+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE `+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, entity_type, title, data, locked, COALESCE(updated_by, ''), created_at, updated_at
		FROM entities WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var entity Entity
		var data []byte
		if err := rows.Scan(&entity.ID, &entity.EntityType, &entity.Title, &data,
			&entity.Locked, &entity.UpdatedBy, &entity.CreatedAt, &entity.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan entity: %w", err)
		}
		if err := json.Unmarshal(data, &entity.Data); err != nil {
			return nil, 0, fmt.Errorf("unmarshal entity data: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, total, rows.Err()
}

// UpdateEntityData replaces the entity's field map. Title is kept in its
// own column for listing and search.
func (s *PostgresStore) UpdateEntityData(ctx context.Context, entityType, entityID string, data map[string]any, title, updatedBy string) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal entity data: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE entities SET data=$3, title=$4, updated_by=$5, updated_at=NOW()
		WHERE entity_type=$1 AND id=$2
	`, entityType, entityID, encoded, title, updatedBy)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- contributions ----

func (s *PostgresStore) InsertContribution(ctx context.Context, item Contribution) error {
	proposed, err := json.Marshal(item.ProposedData)
	if err != nil {
		return fmt.Errorf("marshal proposed data: %w", err)
	}
	order, err := json.Marshal(item.ProposedOrder)
	if err != nil {
		return fmt.Errorf("marshal proposed order: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contributions (id, entity_type, entity_id, action, proposed_data, proposed_order,
			contributor_id, contributor_name, contributor_note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.EntityType, item.EntityID, item.Action, proposed, order,
		item.ContributorID, item.ContributorName, item.ContributorNote, item.Status)
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

const contributionColumns = `
	id, entity_type, entity_id, action, proposed_data, proposed_order,
	contributor_id, contributor_name, COALESCE(contributor_note, ''), status,
	COALESCE(admin_notes, ''), COALESCE(rejection_reason, ''), COALESCE(reviewed_by, ''),
	reviewed_at, created_at
`

func (s *PostgresStore) GetContribution(ctx context.Context, contributionID string) (Contribution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE id=$1`, contributionID)
	return scanContribution(row.Scan)
}

func (s *PostgresStore) ListContributions(ctx context.Context, filter ContributionFilter) ([]Contribution, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		where = append(where, fmt.Sprintf("entity_type=$%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		where = append(where, fmt.Sprintf("entity_id=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contributions WHERE `+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contributions: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM contributions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contributionColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var items []Contribution
	for rows.Next() {
		item, err := scanContribution(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// ApproveContribution flips a PENDING contribution to APPROVED. The WHERE
// clause is the compare-and-swap: a contribution already reviewed by a
// concurrent admin matches zero rows and the caller reports a conflict.
func (s *PostgresStore) ApproveContribution(ctx context.Context, contributionID, reviewedBy, adminNotes string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contributions
		SET status=$2, reviewed_by=$3, admin_notes=$4, reviewed_at=NOW()
		WHERE id=$1 AND status=$5
	`, contributionID, StatusApproved, reviewedBy, adminNotes, StatusPending)
	if err != nil {
		return false, fmt.Errorf("approve contribution: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve contribution: %w", err)
	}
	return affected > 0, nil
}

// RejectContribution flips a PENDING contribution to REJECTED with the
// mandatory reason, leaving the target entity untouched. Same CAS shape as
// ApproveContribution.
func (s *PostgresStore) RejectContribution(ctx context.Context, contributionID, reviewedBy, rejectionReason, adminNotes string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contributions
		SET status=$2, reviewed_by=$3, rejection_reason=$4, admin_notes=$5, reviewed_at=NOW()
		WHERE id=$1 AND status=$6
	`, contributionID, StatusRejected, reviewedBy, rejectionReason, adminNotes, StatusPending)
	if err != nil {
		return false, fmt.Errorf("reject contribution: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject contribution: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SummaryCounts(ctx context.Context) (entities int, pending int, reviewed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entities),
			(SELECT COUNT(*) FROM contributions WHERE status=$1),
			(SELECT COUNT(*) FROM contributions WHERE status<>$1)
	`, StatusPending).Scan(&entities, &pending, &reviewed)
	if err != nil {
		err = fmt.Errorf("summary counts: %w", err)
	}
	return entities, pending, reviewed, err
}

func scanContribution(scan func(...any) error) (Contribution, error) {
	var item Contribution
	var proposed, order []byte
	err := scan(&item.ID, &item.EntityType, &item.EntityID, &item.Action, &proposed, &order,
		&item.ContributorID, &item.ContributorName, &item.ContributorNote, &item.Status,
		&item.AdminNotes, &item.RejectionReason, &item.ReviewedBy,
		&item.ReviewedAt, &item.CreatedAt)
	if err != nil {
		return Contribution{}, err
	}
	if err := json.Unmarshal(proposed, &item.ProposedData); err != nil {
		return Contribution{}, fmt.Errorf("unmarshal proposed data: %w", err)
	}
	if err := json.Unmarshal(order, &item.ProposedOrder); err != nil {
		return Contribution{}, fmt.Errorf("unmarshal proposed order: %w", err)
	}
	return item, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
