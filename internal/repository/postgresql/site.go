package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type siteRepository struct {
	db *database.DB
}

func NewSiteRepository(db *database.DB) payroll.SiteDirectory {
	return &siteRepository{db: db}
}

func (r *siteRepository) GetSite(ctx context.Context, siteID string) (payroll.Site, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT id, company_id, code, name FROM sites WHERE id = $1`

	var s payroll.Site
	err := q.QueryRow(ctx, query, siteID).Scan(&s.ID, &s.CompanyID, &s.Code, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Site{}, payroll.ErrSiteNotFound
		}
		return payroll.Site{}, fmt.Errorf("failed to get site: %w", err)
	}

	return s, nil
}
