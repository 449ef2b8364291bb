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

// FamilyRepository persists households and their children.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs the repository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// FindByID returns a family by identifier.
func (r *FamilyRepository) FindByID(ctx context.Context, id string) (*models.Family, error) {
	const query = `SELECT id, name, primary_parent_id, address, emergency_contact, active, created_at, updated_at FROM families WHERE id = $1 LIMIT 1`
	var family models.Family
	if err := r.db.GetContext(ctx, &family, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find family by id: %w", err)
	}
	return &family, nil
}

// Create inserts a new family.
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	if family.ID == "" {
		family.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if family.CreatedAt.IsZero() {
		family.CreatedAt = now
	}
	family.UpdatedAt = now

	const query = `INSERT INTO families (id, name, primary_parent_id, address, emergency_contact, active, created_at, updated_at) VALUES (:id, :name, :primary_parent_id, :address, :emergency_contact, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("create family: %w", err)
	}
	return nil
}

// Update updates mutable fields of a family.
func (r *FamilyRepository) Update(ctx context.Context, family *models.Family) error {
	family.UpdatedAt = time.Now().UTC()
	const query = `UPDATE families SET name = :name, primary_parent_id = :primary_parent_id, address = :address, emergency_contact = :emergency_contact, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	return nil
}

// AddChild attaches a child record to a family.
func (r *FamilyRepository) AddChild(ctx context.Context, child *models.Child) error {
	if child.ID == "" {
		child.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if child.CreatedAt.IsZero() {
		child.CreatedAt = now
	}
	child.UpdatedAt = now

	const query = `INSERT INTO children (id, family_id, full_name, school, grade, created_at, updated_at) VALUES (:id, :family_id, :full_name, :school, :grade, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("add child: %w", err)
	}
	return nil
}

// RemoveChild deletes a child record scoped to its family.
func (r *FamilyRepository) RemoveChild(ctx context.Context, familyID, childID string) error {
	const query = `DELETE FROM children WHERE id = $1 AND family_id = $2`
	result, err := r.db.ExecContext(ctx, query, childID, familyID)
	if err != nil {
		return fmt.Errorf("remove child: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove child rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListChildren returns the children of a family.
func (r *FamilyRepository) ListChildren(ctx context.Context, familyID string) ([]models.Child, error) {
	const query = `SELECT id, family_id, full_name, school, grade, created_at, updated_at FROM children WHERE family_id = $1 ORDER BY full_name`
	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, query, familyID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}
