package hr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// DocumentStore handles document metadata and the grant table.
type DocumentStore struct{}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

const documentColumns = `id, title, file_path, owner_id, visibility, sensitivity_level, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		d          Document
		visibility string
		level      string
	)
	err := row.Scan(&d.ID, &d.Title, &d.FilePath, &d.OwnerID, &visibility, &level, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d.Visibility, err = access.ParseVisibility(visibility); err != nil {
		return nil, err
	}
	if d.SensitivityLevel, err = parseLevel(level); err != nil {
		return nil, err
	}
	return &d, nil
}

// DocumentInput carries the writable document fields. SharedWith is only
// read on create, where each id receives a view-only grant.
type DocumentInput struct {
	Title            string            `json:"title"`
	FilePath         string            `json:"file_path"`
	Visibility       access.Visibility `json:"visibility,omitempty"`
	SensitivityLevel access.Level      `json:"sensitivity_level,omitempty"`
	SharedWith       []int64           `json:"shared_with,omitempty"`
}

func (in DocumentInput) validate() (access.Visibility, error) {
	if strings.TrimSpace(in.Title) == "" {
		return "", ErrTitleRequired
	}
	return access.ParseVisibility(string(in.Visibility))
}

// Create inserts a document owned by ownerID and its initial grants.
// Call it inside a transaction so a bad grantee rolls back the document.
func (s *DocumentStore) Create(ctx context.Context, q database.Querier, ownerID int64, in DocumentInput) (*Document, error) {
	visibility, err := in.validate()
	if err != nil {
		return nil, err
	}

	doc, err := scanDocument(q.QueryRow(ctx,
		`INSERT INTO documents (title, file_path, owner_id, visibility, sensitivity_level)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+documentColumns,
		in.Title, in.FilePath, ownerID, string(visibility),
		levelOr(in.SensitivityLevel, access.LevelInternal).String(),
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: owner", ErrInvalidReference)
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}

	for _, userID := range in.SharedWith {
		if userID == ownerID {
			continue
		}
		if _, err := s.Grant(ctx, q, doc.ID, userID, ownerID, true, false); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Document, error) {
	doc, err := scanDocument(q.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListAccessible returns the documents userID owns, plus those whose most
// recent grant to userID allows viewing. With all set every document is
// returned.
func (s *DocumentStore) ListAccessible(ctx context.Context, q database.Querier, userID int64, all bool) ([]Document, error) {
	rows, err := q.Query(ctx,
		`SELECT `+documentColumns+` FROM documents d
		 WHERE $2
		    OR d.owner_id = $1
		    OR (SELECT p.can_view FROM document_permissions p
		        WHERE p.resource_id = d.id AND p.user_id = $1
		        ORDER BY p.granted_at DESC, p.id DESC
		        LIMIT 1)
		 ORDER BY d.id`,
		userID, all,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// Update replaces title, path and visibility. The label is left alone when
// in.SensitivityLevel is unset.
func (s *DocumentStore) Update(ctx context.Context, q database.Querier, id int64, in DocumentInput) (*Document, error) {
	visibility, err := in.validate()
	if err != nil {
		return nil, err
	}

	var level *string
	if in.SensitivityLevel != 0 {
		v := in.SensitivityLevel.String()
		level = &v
	}

	doc, err := scanDocument(q.QueryRow(ctx,
		`UPDATE documents
		 SET title = $2, file_path = $3, visibility = $4,
		     sensitivity_level = COALESCE($5, sensitivity_level), updated_at = now()
		 WHERE id = $1
		 RETURNING `+documentColumns,
		id, in.Title, in.FilePath, string(visibility), level,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("updating document: %w", err)
	}
	return doc, nil
}

// Delete removes a document. Its grants go with it.
func (s *DocumentStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

const grantColumns = `id, resource_id, user_id, can_view, can_edit, granted_by, granted_at`

func scanGrant(row pgx.Row) (*access.Grant, error) {
	var g access.Grant
	if err := row.Scan(&g.ID, &g.ResourceID, &g.UserID, &g.CanView, &g.CanEdit, &g.GrantedBy, &g.GrantedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// Grant appends a permission row. Earlier rows for the same pair are kept;
// lookups read the newest.
func (s *DocumentStore) Grant(ctx context.Context, q database.Querier, docID, userID, grantedBy int64, canView, canEdit bool) (*access.Grant, error) {
	g, err := scanGrant(q.QueryRow(ctx,
		`INSERT INTO document_permissions (resource_id, user_id, can_view, can_edit, granted_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+grantColumns,
		docID, userID, canView, canEdit, grantedBy,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: grantee %d", ErrInvalidReference, userID)
		}
		return nil, fmt.Errorf("granting permission: %w", err)
	}
	return g, nil
}

// Revoke deletes every permission row userID holds on the document.
func (s *DocumentStore) Revoke(ctx context.Context, q database.Querier, docID, userID int64) error {
	tag, err := q.Exec(ctx,
		`DELETE FROM document_permissions WHERE resource_id = $1 AND user_id = $2`, docID, userID)
	if err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

// ListGrants returns the effective grant per user on a document.
func (s *DocumentStore) ListGrants(ctx context.Context, q database.Querier, docID int64) ([]access.Grant, error) {
	rows, err := q.Query(ctx,
		`SELECT DISTINCT ON (user_id) `+grantColumns+`
		 FROM document_permissions
		 WHERE resource_id = $1
		 ORDER BY user_id, granted_at DESC, id DESC`,
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing grants: %w", err)
	}
	defer rows.Close()

	grants := []access.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}
