package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/db"
	"github.com/foodmatch/matchd/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// psql builds queries with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS solicitations (
	id                BIGSERIAL PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL,
	agency            TEXT NOT NULL DEFAULT '',
	naics_code        TEXT NOT NULL DEFAULT '',
	set_aside_type    TEXT NOT NULL DEFAULT '',
	zip_code          TEXT NOT NULL,
	lat               DOUBLE PRECISION NOT NULL,
	lng               DOUBLE PRECISION NOT NULL,
	posted_date       DATE,
	response_deadline DATE,
	categories        JSONB NOT NULL DEFAULT '[]',
	estimated_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'open',
	source_type       TEXT NOT NULL DEFAULT 'government',
	company_name      TEXT NOT NULL DEFAULT '',
	company_email     TEXT NOT NULL DEFAULT '',
	created_by        BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS organizations (
	id                   BIGSERIAL PRIMARY KEY,
	name                 TEXT NOT NULL,
	org_type             TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	zip_code             TEXT NOT NULL,
	lat                  DOUBLE PRECISION NOT NULL,
	lng                  DOUBLE PRECISION NOT NULL,
	contact_email        TEXT NOT NULL DEFAULT '',
	capabilities         JSONB NOT NULL DEFAULT '[]',
	certifications       JSONB NOT NULL DEFAULT '[]',
	service_radius_miles DOUBLE PRECISION NOT NULL DEFAULT 100,
	naics_codes          JSONB NOT NULL DEFAULT '[]',
	uei                  TEXT NOT NULL DEFAULT '',
	services_description TEXT NOT NULL DEFAULT '',
	past_performance     JSONB NOT NULL DEFAULT '[]',
	annual_revenue       DOUBLE PRECISION NOT NULL DEFAULT 0,
	employee_count       INTEGER NOT NULL DEFAULT 0,
	years_in_business    INTEGER NOT NULL DEFAULT 0,
	small_business       BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS zip_need_scores (
	zip_code                TEXT PRIMARY KEY,
	lat                     DOUBLE PRECISION NOT NULL,
	lng                     DOUBLE PRECISION NOT NULL,
	state                   TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	food_insecurity_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
	population              INTEGER NOT NULL DEFAULT 0,
	snap_participation_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	need_score              DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS emergency_capacities (
	id                   BIGSERIAL PRIMARY KEY,
	organization_id      BIGINT NOT NULL REFERENCES organizations(id),
	user_id              BIGINT NOT NULL DEFAULT 0,
	supply_type          TEXT NOT NULL,
	item_name            TEXT NOT NULL,
	quantity             INTEGER NOT NULL,
	unit                 TEXT NOT NULL DEFAULT 'units',
	unit_cost            DOUBLE PRECISION NOT NULL DEFAULT 0,
	available_date       DATE,
	expiry_date          DATE,
	status               TEXT NOT NULL DEFAULT 'available',
	zip_code             TEXT NOT NULL,
	lat                  DOUBLE PRECISION NOT NULL,
	lng                  DOUBLE PRECISION NOT NULL,
	service_radius_miles DOUBLE PRECISION NOT NULL DEFAULT 200,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_results (
	id                   TEXT PRIMARY KEY,
	solicitation_id      BIGINT NOT NULL REFERENCES solicitations(id) ON DELETE CASCADE,
	organization_id      BIGINT NOT NULL REFERENCES organizations(id),
	score                DOUBLE PRECISION NOT NULL DEFAULT 0,
	explanation          TEXT NOT NULL DEFAULT '',
	capability_overlap   DOUBLE PRECISION NOT NULL DEFAULT 0,
	distance_miles       DOUBLE PRECISION NOT NULL DEFAULT 0,
	need_score_component DOUBLE PRECISION NOT NULL DEFAULT 0,
	llm_score            DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	password_hash   TEXT NOT NULL,
	name            TEXT NOT NULL,
	organization_id BIGINT NOT NULL DEFAULT 0,
	is_admin        BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS waste_reductions (
	id               BIGSERIAL PRIMARY KEY,
	source_org_id    BIGINT NOT NULL DEFAULT 0,
	dest_org_id      BIGINT NOT NULL DEFAULT 0,
	supply_type      TEXT NOT NULL,
	item_name        TEXT NOT NULL,
	quantity_rescued INTEGER NOT NULL DEFAULT 0,
	unit             TEXT NOT NULL DEFAULT 'lbs',
	estimated_value  DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_zip       TEXT NOT NULL DEFAULT '',
	dest_zip         TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_solicitations_status ON solicitations(status);
CREATE INDEX IF NOT EXISTS idx_solicitations_zip ON solicitations(zip_code);
CREATE INDEX IF NOT EXISTS idx_organizations_org_type ON organizations(org_type);
CREATE INDEX IF NOT EXISTS idx_capacities_status ON emergency_capacities(status);
CREATE INDEX IF NOT EXISTS idx_capacities_supply_type ON emergency_capacities(supply_type);
CREATE INDEX IF NOT EXISTS idx_match_results_solicitation ON match_results(solicitation_id);
CREATE INDEX IF NOT EXISTS idx_match_results_organization ON match_results(organization_id);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	zap.L().Info("postgres: migration complete")
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Solicitations ---

const solicitationCols = `id, title, description, agency, naics_code, set_aside_type,
	zip_code, lat, lng, posted_date, response_deadline, categories,
	estimated_value, status, source_type, company_name, company_email,
	created_by, created_at`

func (s *PostgresStore) CreateSolicitation(ctx context.Context, sol *model.Solicitation) (*model.Solicitation, error) {
	categories, err := json.Marshal(emptyIfNil(sol.Categories))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal categories")
	}
	status := sol.Status
	if status == "" {
		status = model.SolicitationOpen
	}
	sourceType := sol.SourceType
	if sourceType == "" {
		sourceType = model.SourceGovernment
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO solicitations
			(title, description, agency, naics_code, set_aside_type, zip_code,
			 lat, lng, posted_date, response_deadline, categories,
			 estimated_value, status, source_type, company_name, company_email, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id, created_at
	`, sol.Title, sol.Description, sol.Agency, sol.NAICSCode, sol.SetAsideType,
		sol.ZipCode, sol.Lat, sol.Lng, sol.PostedDate, sol.ResponseDeadline,
		categories, sol.EstimatedValue, status, sourceType,
		sol.CompanyName, sol.CompanyEmail, sol.CreatedBy)

	out := *sol
	out.Status = status
	out.SourceType = sourceType
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: insert solicitation")
	}
	return &out, nil
}

func (s *PostgresStore) GetSolicitation(ctx context.Context, id int64) (*model.Solicitation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+solicitationCols+` FROM solicitations WHERE id = $1`, id)
	sol, err := scanSolicitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "solicitation %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get solicitation %d", id)
	}
	return sol, nil
}

func (s *PostgresStore) ListSolicitations(ctx context.Context, filter SolicitationFilter) ([]model.Solicitation, error) {
	q := psql.Select(solicitationCols).
		From("solicitations").
		OrderBy("posted_date DESC NULLS LAST", "id DESC")

	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Category != "" {
		q = q.Where(sq.Expr("jsonb_exists(categories, ?)", filter.Category))
	}
	if filter.ZipCode != "" {
		q = q.Where(sq.Eq{"zip_code": filter.ZipCode})
	}
	if filter.Agency != "" {
		q = q.Where(sq.ILike{"agency": "%" + filter.Agency + "%"})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build solicitation query")
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list solicitations")
	}
	defer rows.Close()

	var out []model.Solicitation
	for rows.Next() {
		sol, err := scanSolicitation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan solicitation")
		}
		out = append(out, *sol)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate solicitations")
}

func (s *PostgresStore) DeleteSolicitation(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM solicitations WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete solicitation %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "solicitation %d", id)
	}
	return nil
}

func scanSolicitation(row pgx.Row) (*model.Solicitation, error) {
	var sol model.Solicitation
	var categories []byte
	err := row.Scan(
		&sol.ID, &sol.Title, &sol.Description, &sol.Agency, &sol.NAICSCode,
		&sol.SetAsideType, &sol.ZipCode, &sol.Lat, &sol.Lng,
		&sol.PostedDate, &sol.ResponseDeadline, &categories,
		&sol.EstimatedValue, &sol.Status, &sol.SourceType,
		&sol.CompanyName, &sol.CompanyEmail, &sol.CreatedBy, &sol.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categories, &sol.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	return &sol, nil
}

// --- Organizations ---

const organizationCols = `id, name, org_type, description, zip_code, lat, lng,
	contact_email, capabilities, certifications, service_radius_miles,
	naics_codes, uei, services_description, past_performance,
	annual_revenue, employee_count, years_in_business, small_business, created_at`

func (s *PostgresStore) CreateOrganization(ctx context.Context, o *model.Organization) (*model.Organization, error) {
	capabilities, err := json.Marshal(emptyIfNil(o.Capabilities))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal capabilities")
	}
	certifications, err := json.Marshal(emptyIfNil(o.Certifications))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal certifications")
	}
	naics, err := json.Marshal(emptyIfNil(o.NAICSCodes))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal naics codes")
	}
	pastPerf, err := json.Marshal(o.PastPerformance)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal past performance")
	}
	if o.PastPerformance == nil {
		pastPerf = []byte("[]")
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO organizations
			(name, org_type, description, zip_code, lat, lng, contact_email,
			 capabilities, certifications, service_radius_miles, naics_codes,
			 uei, services_description, past_performance, annual_revenue,
			 employee_count, years_in_business, small_business)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id, created_at
	`, o.Name, o.OrgType, o.Description, o.ZipCode, o.Lat, o.Lng, o.ContactEmail,
		capabilities, certifications, o.ServiceRadiusMiles, naics, o.UEI,
		o.ServicesDescription, pastPerf, o.AnnualRevenue, o.EmployeeCount,
		o.YearsInBusiness, o.SmallBusiness)

	out := *o
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: insert organization")
	}
	return &out, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+organizationCols+` FROM organizations WHERE id = $1`, id)
	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "organization %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get organization %d", id)
	}
	return org, nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]model.Organization, error) {
	q := psql.Select(organizationCols).
		From("organizations").
		OrderBy("name ASC")

	if filter.OrgType != "" {
		q = q.Where(sq.Eq{"org_type": filter.OrgType})
	}
	if filter.Capability != "" {
		q = q.Where(sq.Expr("jsonb_exists(capabilities, ?)", filter.Capability))
	}
	if filter.ZipCode != "" {
		q = q.Where(sq.Eq{"zip_code": filter.ZipCode})
	}
	if filter.NAICS != "" {
		q = q.Where(sq.Expr("jsonb_exists(naics_codes, ?)", filter.NAICS))
	}
	if filter.SmallBusiness != nil {
		q = q.Where(sq.Eq{"small_business": *filter.SmallBusiness})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build organization query")
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list organizations")
	}
	defer rows.Close()

	var out []model.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		out = append(out, *org)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate organizations")
}

func scanOrganization(row pgx.Row) (*model.Organization, error) {
	var org model.Organization
	var capabilities, certifications, naics, pastPerf []byte
	err := row.Scan(
		&org.ID, &org.Name, &org.OrgType, &org.Description, &org.ZipCode,
		&org.Lat, &org.Lng, &org.ContactEmail, &capabilities, &certifications,
		&org.ServiceRadiusMiles, &naics, &org.UEI, &org.ServicesDescription,
		&pastPerf, &org.AnnualRevenue, &org.EmployeeCount,
		&org.YearsInBusiness, &org.SmallBusiness, &org.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(capabilities, &org.Capabilities); err != nil {
		return nil, eris.Wrap(err, "unmarshal capabilities")
	}
	if err := json.Unmarshal(certifications, &org.Certifications); err != nil {
		return nil, eris.Wrap(err, "unmarshal certifications")
	}
	if err := json.Unmarshal(naics, &org.NAICSCodes); err != nil {
		return nil, eris.Wrap(err, "unmarshal naics codes")
	}
	if err := json.Unmarshal(pastPerf, &org.PastPerformance); err != nil {
		return nil, eris.Wrap(err, "unmarshal past performance")
	}
	return &org, nil
}

// --- ZIP need scores ---

func (s *PostgresStore) UpsertZipNeedScore(ctx context.Context, z *model.ZipNeedScore) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO zip_need_scores
			(zip_code, lat, lng, state, city, food_insecurity_rate,
			 population, snap_participation_rate, need_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (zip_code) DO UPDATE SET
			lat = EXCLUDED.lat, lng = EXCLUDED.lng, state = EXCLUDED.state,
			city = EXCLUDED.city, food_insecurity_rate = EXCLUDED.food_insecurity_rate,
			population = EXCLUDED.population,
			snap_participation_rate = EXCLUDED.snap_participation_rate,
			need_score = EXCLUDED.need_score
	`, z.ZipCode, z.Lat, z.Lng, z.State, z.City, z.FoodInsecurityRate,
		z.Population, z.SNAPParticipationRate, z.NeedScore)
	return eris.Wrapf(err, "postgres: upsert zip %s", z.ZipCode)
}

func (s *PostgresStore) GetZipNeedScore(ctx context.Context, zipCode string) (*model.ZipNeedScore, error) {
	var z model.ZipNeedScore
	err := s.pool.QueryRow(ctx, `
		SELECT zip_code, lat, lng, state, city, food_insecurity_rate,
		       population, snap_participation_rate, need_score
		FROM zip_need_scores WHERE zip_code = $1
	`, zipCode).Scan(
		&z.ZipCode, &z.Lat, &z.Lng, &z.State, &z.City,
		&z.FoodInsecurityRate, &z.Population, &z.SNAPParticipationRate, &z.NeedScore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "zip %s", zipCode)
		}
		return nil, eris.Wrapf(err, "postgres: get zip %s", zipCode)
	}
	return &z, nil
}

func (s *PostgresStore) ListZipNeedScores(ctx context.Context) ([]model.ZipNeedScore, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT zip_code, lat, lng, state, city, food_insecurity_rate,
		       population, snap_participation_rate, need_score
		FROM zip_need_scores ORDER BY zip_code
	`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list zip scores")
	}
	defer rows.Close()

	var out []model.ZipNeedScore
	for rows.Next() {
		var z model.ZipNeedScore
		err := rows.Scan(
			&z.ZipCode, &z.Lat, &z.Lng, &z.State, &z.City,
			&z.FoodInsecurityRate, &z.Population, &z.SNAPParticipationRate, &z.NeedScore,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan zip score")
		}
		out = append(out, z)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate zip scores")
}

// --- Emergency capacity ---

const capacityCols = `id, organization_id, user_id, supply_type, item_name,
	quantity, unit, unit_cost, available_date, expiry_date, status,
	zip_code, lat, lng, service_radius_miles, created_at`

func (s *PostgresStore) CreateCapacity(ctx context.Context, c *model.EmergencyCapacity) (*model.EmergencyCapacity, error) {
	status := c.Status
	if status == "" {
		status = model.CapacityAvailable
	}
	unit := c.Unit
	if unit == "" {
		unit = "units"
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO emergency_capacities
			(organization_id, user_id, supply_type, item_name, quantity, unit,
			 unit_cost, available_date, expiry_date, status, zip_code, lat, lng,
			 service_radius_miles)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at
	`, c.OrganizationID, c.UserID, c.SupplyType, c.ItemName, c.Quantity, unit,
		c.UnitCost, c.AvailableDate, c.ExpiryDate, status, c.ZipCode,
		c.Lat, c.Lng, c.ServiceRadiusMiles)

	out := *c
	out.Status = status
	out.Unit = unit
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: insert capacity")
	}
	return &out, nil
}

func (s *PostgresStore) GetCapacity(ctx context.Context, id int64) (*model.EmergencyCapacity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+capacityCols+` FROM emergency_capacities WHERE id = $1`, id)
	c, err := scanCapacity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "capacity %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get capacity %d", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCapacity(ctx context.Context, filter CapacityFilter) ([]model.EmergencyCapacity, error) {
	q := psql.Select(capacityCols).
		From("emergency_capacities").
		OrderBy("created_at DESC")

	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.SupplyType != "" {
		q = q.Where(sq.Eq{"supply_type": filter.SupplyType})
	}
	if filter.ZipCode != "" {
		q = q.Where(sq.Eq{"zip_code": filter.ZipCode})
	}
	if filter.OrgID != 0 {
		q = q.Where(sq.Eq{"organization_id": filter.OrgID})
	}
	if filter.State != "" {
		q = q.Where(sq.Expr(
			"zip_code IN (SELECT zip_code FROM zip_need_scores WHERE state = ?)",
			filter.State))
	}
	if filter.Search != "" {
		q = q.Where(sq.ILike{"item_name": "%" + filter.Search + "%"})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build capacity query")
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list capacity")
	}
	defer rows.Close()

	var out []model.EmergencyCapacity
	for rows.Next() {
		c, err := scanCapacity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan capacity")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate capacity")
}

func (s *PostgresStore) DeleteCapacity(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM emergency_capacities WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete capacity %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "capacity %d", id)
	}
	return nil
}

func scanCapacity(row pgx.Row) (*model.EmergencyCapacity, error) {
	var c model.EmergencyCapacity
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.UserID, &c.SupplyType, &c.ItemName,
		&c.Quantity, &c.Unit, &c.UnitCost, &c.AvailableDate, &c.ExpiryDate,
		&c.Status, &c.ZipCode, &c.Lat, &c.Lng, &c.ServiceRadiusMiles, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Match results ---

func (s *PostgresStore) ReplaceMatches(ctx context.Context, solicitationID int64, matches []model.MatchResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace matches")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM match_results WHERE solicitation_id = $1`, solicitationID); err != nil {
		return eris.Wrapf(err, "postgres: clear matches for solicitation %d", solicitationID)
	}

	for i := range matches {
		m := &matches[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO match_results
				(id, solicitation_id, organization_id, score, explanation,
				 capability_overlap, distance_miles, need_score_component, llm_score)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, m.ID, solicitationID, m.OrganizationID, m.Score, m.Explanation,
			m.CapabilityOverlap, m.DistanceMiles, m.NeedScoreComponent, m.LLMScore)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert match for org %d", m.OrganizationID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit replace matches")
	}

	zap.L().Info("postgres: replaced matches",
		zap.Int64("solicitation_id", solicitationID),
		zap.Int("count", len(matches)),
	)
	return nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.MatchResult, error) {
	q := psql.Select(`id, solicitation_id, organization_id, score, explanation,
		capability_overlap, distance_miles, need_score_component, llm_score, created_at`).
		From("match_results").
		OrderBy("score DESC")

	if filter.SolicitationID != 0 {
		q = q.Where(sq.Eq{"solicitation_id": filter.SolicitationID})
	}
	if filter.OrganizationID != 0 {
		q = q.Where(sq.Eq{"organization_id": filter.OrganizationID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build match query")
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var out []model.MatchResult
	for rows.Next() {
		var m model.MatchResult
		err := rows.Scan(
			&m.ID, &m.SolicitationID, &m.OrganizationID, &m.Score, &m.Explanation,
			&m.CapabilityOverlap, &m.DistanceMiles, &m.NeedScoreComponent,
			&m.LLMScore, &m.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate matches")
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, organization_id, is_admin)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, u.Email, u.PasswordHash, u.Name, u.OrganizationID, u.IsAdmin)

	out := *u
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, eris.Wrapf(model.ErrConflict, "email %s already registered", u.Email)
		}
		return nil, eris.Wrap(err, "postgres: insert user")
	}
	return &out, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, organization_id, is_admin, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.OrganizationID, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "user %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get user %d", id)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, organization_id, is_admin, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.OrganizationID, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "user %s", email)
		}
		return nil, eris.Wrapf(err, "postgres: get user by email")
	}
	return &u, nil
}

func (s *PostgresStore) SetUserAdmin(ctx context.Context, id int64, isAdmin bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_admin = $1 WHERE id = $2`, isAdmin, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set admin for user %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "user %d", id)
	}
	return nil
}

// --- Waste reductions ---

func (s *PostgresStore) CreateWasteReduction(ctx context.Context, w *model.WasteReduction) (*model.WasteReduction, error) {
	unit := w.Unit
	if unit == "" {
		unit = "lbs"
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO waste_reductions
			(source_org_id, dest_org_id, supply_type, item_name,
			 quantity_rescued, unit, estimated_value, source_zip, dest_zip)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at
	`, w.SourceOrgID, w.DestOrgID, w.SupplyType, w.ItemName,
		w.QuantityRescued, unit, w.EstimatedValue, w.SourceZip, w.DestZip)

	out := *w
	out.Unit = unit
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: insert waste reduction")
	}
	return &out, nil
}

func (s *PostgresStore) ListWasteReductions(ctx context.Context) ([]model.WasteReduction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_org_id, dest_org_id, supply_type, item_name,
		       quantity_rescued, unit, estimated_value, source_zip, dest_zip, created_at
		FROM waste_reductions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list waste reductions")
	}
	defer rows.Close()

	var out []model.WasteReduction
	for rows.Next() {
		var w model.WasteReduction
		err := rows.Scan(
			&w.ID, &w.SourceOrgID, &w.DestOrgID, &w.SupplyType, &w.ItemName,
			&w.QuantityRescued, &w.Unit, &w.EstimatedValue, &w.SourceZip,
			&w.DestZip, &w.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan waste reduction")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate waste reductions")
}

// --- Dashboard ---

func (s *PostgresStore) Stats(ctx context.Context) (*DashboardStats, error) {
	var st DashboardStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM solicitations),
			(SELECT count(*) FROM organizations),
			(SELECT count(*) FROM match_results),
			COALESCE((SELECT avg(need_score) FROM zip_need_scores), 0),
			(SELECT count(*) FROM solicitations WHERE source_type = 'government'),
			(SELECT count(*) FROM solicitations WHERE source_type = 'commercial'),
			(SELECT count(*) FROM solicitations WHERE status = 'open'),
			COALESCE((SELECT avg(score) FROM match_results), 0),
			(SELECT count(*) FROM match_results WHERE score >= 80),
			(SELECT count(*) FROM organizations WHERE org_type = 'supplier'),
			(SELECT count(*) FROM organizations WHERE org_type = 'distributor'),
			(SELECT count(*) FROM organizations WHERE org_type = 'nonprofit')
	`).Scan(
		&st.TotalSolicitations, &st.TotalOrganizations, &st.TotalMatches,
		&st.AvgNeedScore, &st.GovernmentCount, &st.CommercialCount,
		&st.OpenCount, &st.AvgMatchScore, &st.HighConfidenceMatches,
		&st.Suppliers, &st.Distributors, &st.Nonprofits,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dashboard stats")
	}
	return &st, nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
