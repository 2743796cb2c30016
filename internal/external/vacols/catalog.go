package vacols

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/claims-intake/internal/external"
	"go.uber.org/zap"
)

// Catalog reads the locally mirrored VACOLS issue reference table
// (issref). It implements external.IssueCatalog.
type Catalog struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalog creates a new issue reference catalog.
func NewCatalog(db *sql.DB, logger *zap.Logger) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger,
	}
}

// FindReference returns the catalog rows matching the given code
// combination. Level columns that are empty in the catalog act as
// wildcards, matching any requested value.
func (c *Catalog) FindReference(ctx context.Context, ref external.IssueReference) ([]external.IssueReference, error) {
	query := `
		SELECT prog_code, iss_code, lev1_code, lev2_code, lev3_code
		FROM issref
		WHERE prog_code = ?
		  AND iss_code = ?
		  AND (lev1_code = ? OR lev1_code = '')
		  AND (lev2_code = ? OR lev2_code = '')
		  AND (lev3_code = ? OR lev3_code = '')
	`

	rows, err := c.db.QueryContext(ctx, query, ref.Program, ref.Issue, ref.Level1, ref.Level2, ref.Level3)
	if err != nil {
		c.logger.Error("Failed to query issue references", zap.Error(err))
		return nil, fmt.Errorf("failed to query issue references: %w", err)
	}
	defer rows.Close()

	var refs []external.IssueReference
	for rows.Next() {
		var r external.IssueReference
		if err := rows.Scan(&r.Program, &r.Issue, &r.Level1, &r.Level2, &r.Level3); err != nil {
			return nil, fmt.Errorf("failed to scan issue reference: %w", err)
		}
		refs = append(refs, r)
	}

	return refs, rows.Err()
}
