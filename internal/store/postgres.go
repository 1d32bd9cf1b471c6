package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Postgres stores fiches, propositions and analyses in PostgreSQL. The
// tables are expected to exist; propositions reference their fiche with
// ON DELETE CASCADE and are unique per (fiche_id, temps).
type Postgres struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgres connects to the database and checks it answers
func NewPostgres(ctx context.Context, cfg Config, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("Fiche store connected",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return &Postgres{db: db, logger: logger}, nil
}

// Close releases the connection pool
func (s *Postgres) Close() error {
	return s.db.Close()
}

// CreateFiche inserts r and fills its id and timestamps
func (s *Postgres) CreateFiche(ctx context.Context, r *FicheRecord) error {
	if r.Status == "" {
		r.Status = StatusPending
	}
	query, args := ficheInsertQuery(r)
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		s.logger.Error("Failed to insert fiche", zap.Error(err), zap.String("source", r.SourceFilename))
		return fmt.Errorf("failed to insert fiche: %w", err)
	}

	s.logger.Debug("Fiche inserted", zap.Int64("id", r.ID), zap.String("source", r.SourceFilename))
	return nil
}

// GetFiche loads one fiche
func (s *Postgres) GetFiche(ctx context.Context, id int64) (*FicheRecord, error) {
	var row ficheRow
	query := "SELECT " + ficheSelectList() + " FROM fiches WHERE id = $1"
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get fiche %d: %w", id, err)
	}
	return row.record(), nil
}

// UpdateFiche rewrites the editable fields and status of r
func (s *Postgres) UpdateFiche(ctx context.Context, r *FicheRecord) error {
	query, args := ficheUpdateQuery(r)
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update fiche %d: %w", r.ID, err)
	}
	return nil
}

// ListFiches returns one page of fiches, newest first
func (s *Postgres) ListFiches(ctx context.Context, opts ListOptions) (*FichePage, error) {
	opts = opts.normalize()
	where, args := ficheListFilter(opts)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM fiches "+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count fiches: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM fiches %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		ficheSelectList(), where, len(args)+1, len(args)+2)

	var rows []ficheRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, opts.Limit, opts.offset())...); err != nil {
		return nil, fmt.Errorf("failed to list fiches: %w", err)
	}

	fiches := make([]*FicheRecord, len(rows))
	for i := range rows {
		fiches[i] = rows[i].record()
	}
	return newPage(fiches, opts, total), nil
}

// DeleteFiche removes one fiche and, through the foreign key, its
// propositions
func (s *Postgres) DeleteFiche(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "fiches", id)
}

// CreateAnalyse inserts r and fills its id and timestamps
func (s *Postgres) CreateAnalyse(ctx context.Context, r *AnalyseRecord) error {
	if r.Status == "" {
		r.Status = StatusPending
	}
	query, args := insertQuery("analyses", analyseColumns, r)
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		s.logger.Error("Failed to insert analyse", zap.Error(err), zap.Strings("sources", r.SourceFiles))
		return fmt.Errorf("failed to insert analyse: %w", err)
	}
	return nil
}

// GetAnalyse loads one analysis
func (s *Postgres) GetAnalyse(ctx context.Context, id int64) (*AnalyseRecord, error) {
	var row analyseRow
	query := "SELECT " + selectList(analyseColumns) + " FROM analyses WHERE id = $1"
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analyse %d: %w", id, err)
	}
	return row.record(), nil
}

// UpdateAnalyse rewrites the fields, status and PDF path of r
func (s *Postgres) UpdateAnalyse(ctx context.Context, r *AnalyseRecord) error {
	query, args := updateQuery("analyses", analyseColumns, r.ID, r)
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update analyse %d: %w", r.ID, err)
	}
	return nil
}

// ListAnalyses returns one page of analyses, newest first
func (s *Postgres) ListAnalyses(ctx context.Context, opts ListOptions) (*AnalysePage, error) {
	opts = opts.normalize()
	where, args := analyseListFilter(opts)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM analyses "+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM analyses %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		selectList(analyseColumns), where, len(args)+1, len(args)+2)

	var rows []analyseRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, opts.Limit, opts.offset())...); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	analyses := make([]*AnalyseRecord, len(rows))
	for i := range rows {
		analyses[i] = rows[i].record()
	}
	return newAnalysePage(analyses, opts, total), nil
}

// DeleteAnalyse removes one analysis
func (s *Postgres) DeleteAnalyse(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "analyses", id)
}

// SaveProposition creates or replaces the proposition of r.FicheID for
// r.Temps
func (s *Postgres) SaveProposition(ctx context.Context, r *PropositionRecord) error {
	query, args := propositionUpsertQuery(r)
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("failed to save proposition for fiche %d: %w", r.FicheID, err)
	}

	s.logger.Debug("Proposition saved",
		zap.Int64("id", r.ID), zap.Int64("fiche_id", r.FicheID), zap.Int("temps", r.Temps))
	return nil
}

// GetProposition loads the proposition of a fiche for one temps
func (s *Postgres) GetProposition(ctx context.Context, ficheID int64, temps int) (*PropositionRecord, error) {
	var row propositionRow
	query := "SELECT " + selectList(propositionColumns) + " FROM propositions WHERE fiche_id = $1 AND temps = $2"
	if err := s.db.GetContext(ctx, &row, query, ficheID, temps); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get proposition for fiche %d: %w", ficheID, err)
	}
	return row.record(), nil
}

// foreignKeyViolation is the PostgreSQL error code of a missing referenced row
const foreignKeyViolation = "23503"

func (s *Postgres) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete from %s %d: %w", table, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// maskDatabaseURL hides the password of a connection URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
