package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/sitecal/internal/model"
)

type SiteStore struct {
	db *sql.DB
}

func NewSiteStore(db *sql.DB) *SiteStore {
	return &SiteStore{db: db}
}

func scanSite(scanner interface{ Scan(...any) error }) (*model.Site, error) {
	var s model.Site
	err := scanner.Scan(&s.ID, &s.ShortName, &s.Title, &s.FeedPINHash, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.HasFeedPIN = s.FeedPINHash != ""
	return &s, nil
}

const siteCols = `id, short_name, title, feed_pin_hash, created_at`

func (s *SiteStore) Create(shortName, title string) (*model.Site, error) {
	result, err := s.db.Exec(`INSERT INTO sites (short_name, title) VALUES (?, ?)`, shortName, title)
	if err != nil {
		return nil, fmt.Errorf("insert site: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SiteStore) GetByID(id int64) (*model.Site, error) {
	row := s.db.QueryRow(`SELECT `+siteCols+` FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *SiteStore) GetByShortName(shortName string) (*model.Site, error) {
	row := s.db.QueryRow(`SELECT `+siteCols+` FROM sites WHERE short_name = ?`, shortName)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site by short name: %w", err)
	}
	return site, nil
}

func (s *SiteStore) List() ([]model.Site, error) {
	rows, err := s.db.Query(`SELECT ` + siteCols + ` FROM sites ORDER BY short_name`)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// SetFeedPIN stores the bcrypt hash guarding the site's calendar feed.
// An empty hash removes the PIN.
func (s *SiteStore) SetFeedPIN(shortName, hash string) error {
	result, err := s.db.Exec(`UPDATE sites SET feed_pin_hash = ? WHERE short_name = ?`, hash, shortName)
	if err != nil {
		return fmt.Errorf("set feed pin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set feed pin: site %q not found", shortName)
	}
	return nil
}
