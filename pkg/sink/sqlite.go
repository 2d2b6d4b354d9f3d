package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"igleads/pkg/models"
	_ "modernc.org/sqlite"
)

const leadsSchema = `
CREATE TABLE IF NOT EXISTS leads (
	run_id              TEXT NOT NULL,
	handle              TEXT NOT NULL,
	display_name        TEXT,
	bio                 TEXT,
	whatsapp_number     TEXT,
	whatsapp_group_link TEXT,
	category            TEXT NOT NULL,
	region              TEXT,
	follower_count      INTEGER,
	profile_url         TEXT,
	external_link       TEXT,
	depth               INTEGER NOT NULL,
	discovered_at       INTEGER NOT NULL,
	PRIMARY KEY (run_id, handle)
);
CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
`

// SQLiteSink stores leads in a SQLite table keyed by run and handle. A lead
// emitted twice for the same run is stored once.
type SQLiteSink struct {
	db    *sql.DB
	runID string
	path  string
}

// NewSQLiteSink opens or creates the database at path
func NewSQLiteSink(ctx context.Context, path, runID string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, leadsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteSink{db: db, runID: runID, path: path}, nil
}

func (s *SQLiteSink) Emit(ctx context.Context, lead models.ClassifiedLead) error {
	var followers interface{}
	if lead.FollowerCount != nil {
		followers = *lead.FollowerCount
	}
	discovered := lead.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}

	query, args, err := sq.Insert("leads").
		Options("OR IGNORE").
		Columns(
			"run_id", "handle", "display_name", "bio",
			"whatsapp_number", "whatsapp_group_link", "category", "region",
			"follower_count", "profile_url", "external_link", "depth", "discovered_at",
		).
		Values(
			s.runID, lead.Handle.String(), lead.DisplayName, lead.Bio,
			lead.Contact.WhatsAppNumber, lead.Contact.WhatsAppGroupLink, string(lead.Category), lead.Region,
			followers, lead.ProfileURL, lead.ExternalLink, lead.Depth, discovered.UnixNano(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// Count returns the number of leads stored for this run
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("leads").
		Where(sq.Eq{"run_id": s.runID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return n, nil
}

// Leads returns the leads stored for this run in discovery order,
// optionally restricted to one category
func (s *SQLiteSink) Leads(ctx context.Context, category models.Category) ([]models.ClassifiedLead, error) {
	builder := sq.Select(
		"handle", "display_name", "bio", "whatsapp_number", "whatsapp_group_link",
		"category", "region", "follower_count", "profile_url", "external_link", "depth", "discovered_at",
	).
		From("leads").
		Where(sq.Eq{"run_id": s.runID}).
		OrderBy("discovered_at", "handle")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": string(category)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.ClassifiedLead
	for rows.Next() {
		var (
			lead                     models.ClassifiedLead
			handle, cat              string
			displayName, bio         sql.NullString
			number, group, region    sql.NullString
			profileURL, externalLink sql.NullString
			followers                sql.NullInt64
			discovered               int64
		)
		if err := rows.Scan(
			&handle, &displayName, &bio, &number, &group,
			&cat, &region, &followers, &profileURL, &externalLink, &lead.Depth, &discovered,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		lead.Handle = models.Handle(handle)
		lead.Category = models.Category(cat)
		lead.DisplayName = displayName.String
		lead.Bio = bio.String
		lead.Contact = models.ContactInfo{WhatsAppNumber: number.String, WhatsAppGroupLink: group.String}
		lead.Region = region.String
		lead.ProfileURL = profileURL.String
		lead.ExternalLink = externalLink.String
		lead.DiscoveredAt = time.Unix(0, discovered).UTC()
		if followers.Valid {
			n := int(followers.Int64)
			lead.FollowerCount = &n
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// Path returns the database file path
func (s *SQLiteSink) Path() string {
	return s.path
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
