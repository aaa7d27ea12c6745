package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coop-registration-api/internal/models"
)

// FamilyRepository looks up families and their members.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs the repository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// FindByID returns a family or sql.ErrNoRows.
func (r *FamilyRepository) FindByID(ctx context.Context, id string) (*models.Family, error) {
	const query = `SELECT id, name FROM families WHERE id = $1`
	var family models.Family
	if err := r.db.GetContext(ctx, &family, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find family: %w", err)
	}
	return &family, nil
}

// FindGuardian returns a guardian or sql.ErrNoRows.
func (r *FamilyRepository) FindGuardian(ctx context.Context, id string) (*models.Guardian, error) {
	const query = `SELECT id, family_id, full_name FROM guardians WHERE id = $1`
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian: %w", err)
	}
	return &guardian, nil
}

// FindChild returns a child or sql.ErrNoRows.
func (r *FamilyRepository) FindChild(ctx context.Context, id string) (*models.Child, error) {
	const query = `SELECT id, family_id, full_name FROM children WHERE id = $1`
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find child: %w", err)
	}
	return &child, nil
}
