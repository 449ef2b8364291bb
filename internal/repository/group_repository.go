package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/carpool-api/internal/models"
)

// GroupRepository persists carpool groups and memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.CarpoolGroup, error) {
	const query = `SELECT id, name, school, meeting_point, description, created_by, active, created_at, updated_at FROM carpool_groups WHERE id = $1 LIMIT 1`
	var group models.CarpoolGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group by id: %w", err)
	}
	return &group, nil
}

// List returns all active groups.
func (r *GroupRepository) List(ctx context.Context) ([]models.CarpoolGroup, error) {
	const query = `SELECT id, name, school, meeting_point, description, created_by, active, created_at, updated_at FROM carpool_groups WHERE active = TRUE ORDER BY name`
	var groups []models.CarpoolGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.CarpoolGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO carpool_groups (id, name, school, meeting_point, description, created_by, active, created_at, updated_at) VALUES (:id, :name, :school, :meeting_point, :description, :created_by, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// AddMember links a family to a group; duplicate joins are idempotent.
func (r *GroupRepository) AddMember(ctx context.Context, membership *models.GroupMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = now
	}
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = now
	}

	const query = `INSERT INTO group_memberships (id, group_id, family_id, joined_at, created_at) VALUES (:id, :group_id, :family_id, :joined_at, :created_at) ON CONFLICT (group_id, family_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember unlinks a family from a group.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, familyID string) error {
	const query = `DELETE FROM group_memberships WHERE group_id = $1 AND family_id = $2`
	result, err := r.db.ExecContext(ctx, query, groupID, familyID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove group member rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsMember reports whether the family belongs to the group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, familyID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM group_memberships WHERE group_id = $1 AND family_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID, familyID); err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return count > 0, nil
}

// ListMembers returns the member families of a group ordered by family id so
// roster consumers iterate deterministically.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.Family, error) {
	const query = `SELECT f.id, f.name, f.primary_parent_id, f.address, f.emergency_contact, f.active, f.created_at, f.updated_at
		FROM families f
		INNER JOIN group_memberships m ON m.family_id = f.id
		WHERE m.group_id = $1 AND f.active = TRUE
		ORDER BY f.id`
	var families []models.Family
	if err := r.db.SelectContext(ctx, &families, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return families, nil
}

// ListGroupsByFamily returns the groups a family belongs to.
func (r *GroupRepository) ListGroupsByFamily(ctx context.Context, familyID string) ([]models.CarpoolGroup, error) {
	const query = `SELECT g.id, g.name, g.school, g.meeting_point, g.description, g.created_by, g.active, g.created_at, g.updated_at
		FROM carpool_groups g
		INNER JOIN group_memberships m ON m.group_id = g.id
		WHERE m.family_id = $1 AND g.active = TRUE
		ORDER BY g.name`
	var groups []models.CarpoolGroup
	if err := r.db.SelectContext(ctx, &groups, query, familyID); err != nil {
		return nil, fmt.Errorf("list groups by family: %w", err)
	}
	return groups, nil
}
