package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

// RequiredDocumentRepository reads the global document catalog.
type RequiredDocumentRepository struct {
	db *sqlx.DB
}

// NewRequiredDocumentRepository constructs the repository.
func NewRequiredDocumentRepository(db *sqlx.DB) *RequiredDocumentRepository {
	return &RequiredDocumentRepository{db: db}
}

// List returns the catalog. When requiredOnly is set only mandatory entries are returned.
func (r *RequiredDocumentRepository) List(ctx context.Context, requiredOnly bool) ([]models.RequiredDocument, error) {
	query := `SELECT id, name, is_required, created_at FROM required_documents`
	if requiredOnly {
		query += ` WHERE is_required = TRUE`
	}
	var docs []models.RequiredDocument
	if err := r.db.SelectContext(ctx, &docs, query+` ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list required documents: %w", err)
	}
	return docs, nil
}
