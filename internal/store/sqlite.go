package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/foodmatch/matchd/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. JSON-typed columns
// are stored as TEXT and queried with the json_each table function.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS solicitations (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL,
	agency            TEXT NOT NULL DEFAULT '',
	naics_code        TEXT NOT NULL DEFAULT '',
	set_aside_type    TEXT NOT NULL DEFAULT '',
	zip_code          TEXT NOT NULL,
	lat               REAL NOT NULL,
	lng               REAL NOT NULL,
	posted_date       DATETIME,
	response_deadline DATETIME,
	categories        TEXT NOT NULL DEFAULT '[]',
	estimated_value   REAL NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'open',
	source_type       TEXT NOT NULL DEFAULT 'government',
	company_name      TEXT NOT NULL DEFAULT '',
	company_email     TEXT NOT NULL DEFAULT '',
	created_by        INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS organizations (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	name                 TEXT NOT NULL,
	org_type             TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	zip_code             TEXT NOT NULL,
	lat                  REAL NOT NULL,
	lng                  REAL NOT NULL,
	contact_email        TEXT NOT NULL DEFAULT '',
	capabilities         TEXT NOT NULL DEFAULT '[]',
	certifications       TEXT NOT NULL DEFAULT '[]',
	service_radius_miles REAL NOT NULL DEFAULT 100,
	naics_codes          TEXT NOT NULL DEFAULT '[]',
	uei                  TEXT NOT NULL DEFAULT '',
	services_description TEXT NOT NULL DEFAULT '',
	past_performance     TEXT NOT NULL DEFAULT '[]',
	annual_revenue       REAL NOT NULL DEFAULT 0,
	employee_count       INTEGER NOT NULL DEFAULT 0,
	years_in_business    INTEGER NOT NULL DEFAULT 0,
	small_business       INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS zip_need_scores (
	zip_code                TEXT PRIMARY KEY,
	lat                     REAL NOT NULL,
	lng                     REAL NOT NULL,
	state                   TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	food_insecurity_rate    REAL NOT NULL DEFAULT 0,
	population              INTEGER NOT NULL DEFAULT 0,
	snap_participation_rate REAL NOT NULL DEFAULT 0,
	need_score              REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS emergency_capacities (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	organization_id      INTEGER NOT NULL REFERENCES organizations(id),
	user_id              INTEGER NOT NULL DEFAULT 0,
	supply_type          TEXT NOT NULL,
	item_name            TEXT NOT NULL,
	quantity             INTEGER NOT NULL,
	unit                 TEXT NOT NULL DEFAULT 'units',
	unit_cost            REAL NOT NULL DEFAULT 0,
	available_date       DATETIME,
	expiry_date          DATETIME,
	status               TEXT NOT NULL DEFAULT 'available',
	zip_code             TEXT NOT NULL,
	lat                  REAL NOT NULL,
	lng                  REAL NOT NULL,
	service_radius_miles REAL NOT NULL DEFAULT 200,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS match_results (
	id                   TEXT PRIMARY KEY,
	solicitation_id      INTEGER NOT NULL REFERENCES solicitations(id) ON DELETE CASCADE,
	organization_id      INTEGER NOT NULL REFERENCES organizations(id),
	score                REAL NOT NULL DEFAULT 0,
	explanation          TEXT NOT NULL DEFAULT '',
	capability_overlap   REAL NOT NULL DEFAULT 0,
	distance_miles       REAL NOT NULL DEFAULT 0,
	need_score_component REAL NOT NULL DEFAULT 0,
	llm_score            REAL NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS users (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	email           TEXT NOT NULL UNIQUE,
	password_hash   TEXT NOT NULL,
	name            TEXT NOT NULL,
	organization_id INTEGER NOT NULL DEFAULT 0,
	is_admin        INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS waste_reductions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	source_org_id    INTEGER NOT NULL DEFAULT 0,
	dest_org_id      INTEGER NOT NULL DEFAULT 0,
	supply_type      TEXT NOT NULL,
	item_name        TEXT NOT NULL,
	quantity_rescued INTEGER NOT NULL DEFAULT 0,
	unit             TEXT NOT NULL DEFAULT 'lbs',
	estimated_value  REAL NOT NULL DEFAULT 0,
	source_zip       TEXT NOT NULL DEFAULT '',
	dest_zip         TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_solicitations_status ON solicitations(status);
CREATE INDEX IF NOT EXISTS idx_solicitations_zip ON solicitations(zip_code);
CREATE INDEX IF NOT EXISTS idx_organizations_org_type ON organizations(org_type);
CREATE INDEX IF NOT EXISTS idx_capacities_status ON emergency_capacities(status);
CREATE INDEX IF NOT EXISTS idx_match_results_solicitation ON match_results(solicitation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	zap.L().Info("sqlite: migration complete")
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Solicitations ---

func (s *SQLiteStore) CreateSolicitation(ctx context.Context, sol *model.Solicitation) (*model.Solicitation, error) {
	categories, err := json.Marshal(emptyIfNil(sol.Categories))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal categories")
	}
	status := sol.Status
	if status == "" {
		status = model.SolicitationOpen
	}
	sourceType := sol.SourceType
	if sourceType == "" {
		sourceType = model.SourceGovernment
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO solicitations
			(title, description, agency, naics_code, set_aside_type, zip_code,
			 lat, lng, posted_date, response_deadline, categories,
			 estimated_value, status, source_type, company_name, company_email,
			 created_by, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, sol.Title, sol.Description, sol.Agency, sol.NAICSCode, sol.SetAsideType,
		sol.ZipCode, sol.Lat, sol.Lng, sol.PostedDate, sol.ResponseDeadline,
		string(categories), sol.EstimatedValue, string(status), string(sourceType),
		sol.CompanyName, sol.CompanyEmail, sol.CreatedBy, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert solicitation")
	}

	out := *sol
	out.Status = status
	out.SourceType = sourceType
	out.CreatedAt = now
	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: solicitation id")
	}
	return &out, nil
}

func (s *SQLiteStore) GetSolicitation(ctx context.Context, id int64) (*model.Solicitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+solicitationCols+` FROM solicitations WHERE id = ?`, id)
	sol, err := scanSolicitationSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "solicitation %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get solicitation %d", id)
	}
	return sol, nil
}

func (s *SQLiteStore) ListSolicitations(ctx context.Context, filter SolicitationFilter) ([]model.Solicitation, error) {
	query := `SELECT ` + solicitationCols + ` FROM solicitations WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(categories) WHERE value = ?)`
		args = append(args, filter.Category)
	}
	if filter.ZipCode != "" {
		query += ` AND zip_code = ?`
		args = append(args, filter.ZipCode)
	}
	if filter.Agency != "" {
		query += ` AND agency LIKE ?`
		args = append(args, "%"+filter.Agency+"%")
	}
	query += ` ORDER BY posted_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list solicitations")
	}
	defer rows.Close()

	var out []model.Solicitation
	for rows.Next() {
		sol, err := scanSolicitationSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan solicitation")
		}
		out = append(out, *sol)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate solicitations")
}

func (s *SQLiteStore) DeleteSolicitation(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM match_results WHERE solicitation_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete matches for solicitation %d", id)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM solicitations WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete solicitation %d", id)
	}
	return checkRowsAffected(res, "solicitation", id)
}

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSolicitationSQL(row sqlRow) (*model.Solicitation, error) {
	var sol model.Solicitation
	var categories string
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
	if err := json.Unmarshal([]byte(categories), &sol.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	return &sol, nil
}

// --- Organizations ---

func (s *SQLiteStore) CreateOrganization(ctx context.Context, o *model.Organization) (*model.Organization, error) {
	capabilities, err := json.Marshal(emptyIfNil(o.Capabilities))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal capabilities")
	}
	certifications, err := json.Marshal(emptyIfNil(o.Certifications))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal certifications")
	}
	naics, err := json.Marshal(emptyIfNil(o.NAICSCodes))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal naics codes")
	}
	pastPerf := []byte("[]")
	if o.PastPerformance != nil {
		pastPerf, err = json.Marshal(o.PastPerformance)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal past performance")
		}
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations
			(name, org_type, description, zip_code, lat, lng, contact_email,
			 capabilities, certifications, service_radius_miles, naics_codes,
			 uei, services_description, past_performance, annual_revenue,
			 employee_count, years_in_business, small_business, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, o.Name, string(o.OrgType), o.Description, o.ZipCode, o.Lat, o.Lng,
		o.ContactEmail, string(capabilities), string(certifications),
		o.ServiceRadiusMiles, string(naics), o.UEI, o.ServicesDescription,
		string(pastPerf), o.AnnualRevenue, o.EmployeeCount,
		o.YearsInBusiness, o.SmallBusiness, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert organization")
	}

	out := *o
	out.CreatedAt = now
	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: organization id")
	}
	return &out, nil
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationCols+` FROM organizations WHERE id = ?`, id)
	org, err := scanOrganizationSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "organization %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get organization %d", id)
	}
	return org, nil
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]model.Organization, error) {
	query := `SELECT ` + organizationCols + ` FROM organizations WHERE 1=1`
	var args []any

	if filter.OrgType != "" {
		query += ` AND org_type = ?`
		args = append(args, string(filter.OrgType))
	}
	if filter.Capability != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(capabilities) WHERE value = ?)`
		args = append(args, filter.Capability)
	}
	if filter.ZipCode != "" {
		query += ` AND zip_code = ?`
		args = append(args, filter.ZipCode)
	}
	if filter.NAICS != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(naics_codes) WHERE value = ?)`
		args = append(args, filter.NAICS)
	}
	if filter.SmallBusiness != nil {
		query += ` AND small_business = ?`
		args = append(args, *filter.SmallBusiness)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list organizations")
	}
	defer rows.Close()

	var out []model.Organization
	for rows.Next() {
		org, err := scanOrganizationSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		out = append(out, *org)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate organizations")
}

func scanOrganizationSQL(row sqlRow) (*model.Organization, error) {
	var org model.Organization
	var capabilities, certifications, naics, pastPerf string
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
	if err := json.Unmarshal([]byte(capabilities), &org.Capabilities); err != nil {
		return nil, eris.Wrap(err, "unmarshal capabilities")
	}
	if err := json.Unmarshal([]byte(certifications), &org.Certifications); err != nil {
		return nil, eris.Wrap(err, "unmarshal certifications")
	}
	if err := json.Unmarshal([]byte(naics), &org.NAICSCodes); err != nil {
		return nil, eris.Wrap(err, "unmarshal naics codes")
	}
	if err := json.Unmarshal([]byte(pastPerf), &org.PastPerformance); err != nil {
		return nil, eris.Wrap(err, "unmarshal past performance")
	}
	return &org, nil
}

// --- ZIP need scores ---

func (s *SQLiteStore) UpsertZipNeedScore(ctx context.Context, z *model.ZipNeedScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zip_need_scores
			(zip_code, lat, lng, state, city, food_insecurity_rate,
			 population, snap_participation_rate, need_score)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (zip_code) DO UPDATE SET
			lat = excluded.lat, lng = excluded.lng, state = excluded.state,
			city = excluded.city, food_insecurity_rate = excluded.food_insecurity_rate,
			population = excluded.population,
			snap_participation_rate = excluded.snap_participation_rate,
			need_score = excluded.need_score
	`, z.ZipCode, z.Lat, z.Lng, z.State, z.City, z.FoodInsecurityRate,
		z.Population, z.SNAPParticipationRate, z.NeedScore)
	return eris.Wrapf(err, "sqlite: upsert zip %s", z.ZipCode)
}

func (s *SQLiteStore) GetZipNeedScore(ctx context.Context, zipCode string) (*model.ZipNeedScore, error) {
	var z model.ZipNeedScore
	err := s.db.QueryRowContext(ctx, `
		SELECT zip_code, lat, lng, state, city, food_insecurity_rate,
		       population, snap_participation_rate, need_score
		FROM zip_need_scores WHERE zip_code = ?
	`, zipCode).Scan(
		&z.ZipCode, &z.Lat, &z.Lng, &z.State, &z.City,
		&z.FoodInsecurityRate, &z.Population, &z.SNAPParticipationRate, &z.NeedScore,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "zip %s", zipCode)
		}
		return nil, eris.Wrapf(err, "sqlite: get zip %s", zipCode)
	}
	return &z, nil
}

func (s *SQLiteStore) ListZipNeedScores(ctx context.Context) ([]model.ZipNeedScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT zip_code, lat, lng, state, city, food_insecurity_rate,
		       population, snap_participation_rate, need_score
		FROM zip_need_scores ORDER BY zip_code
	`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list zip scores")
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
			return nil, eris.Wrap(err, "sqlite: scan zip score")
		}
		out = append(out, z)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate zip scores")
}

// --- Emergency capacity ---

func (s *SQLiteStore) CreateCapacity(ctx context.Context, c *model.EmergencyCapacity) (*model.EmergencyCapacity, error) {
	status := c.Status
	if status == "" {
		status = model.CapacityAvailable
	}
	unit := c.Unit
	if unit == "" {
		unit = "units"
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emergency_capacities
			(organization_id, user_id, supply_type, item_name, quantity, unit,
			 unit_cost, available_date, expiry_date, status, zip_code, lat, lng,
			 service_radius_miles, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, c.OrganizationID, c.UserID, c.SupplyType, c.ItemName, c.Quantity, unit,
		c.UnitCost, c.AvailableDate, c.ExpiryDate, string(status), c.ZipCode,
		c.Lat, c.Lng, c.ServiceRadiusMiles, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert capacity")
	}

	out := *c
	out.Status = status
	out.Unit = unit
	out.CreatedAt = now
	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: capacity id")
	}
	return &out, nil
}

func (s *SQLiteStore) GetCapacity(ctx context.Context, id int64) (*model.EmergencyCapacity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+capacityCols+` FROM emergency_capacities WHERE id = ?`, id)
	var c model.EmergencyCapacity
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.UserID, &c.SupplyType, &c.ItemName,
		&c.Quantity, &c.Unit, &c.UnitCost, &c.AvailableDate, &c.ExpiryDate,
		&c.Status, &c.ZipCode, &c.Lat, &c.Lng, &c.ServiceRadiusMiles, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "capacity %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get capacity %d", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCapacity(ctx context.Context, filter CapacityFilter) ([]model.EmergencyCapacity, error) {
	query := `SELECT ` + capacityCols + ` FROM emergency_capacities WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SupplyType != "" {
		query += ` AND supply_type = ?`
		args = append(args, filter.SupplyType)
	}
	if filter.ZipCode != "" {
		query += ` AND zip_code = ?`
		args = append(args, filter.ZipCode)
	}
	if filter.OrgID != 0 {
		query += ` AND organization_id = ?`
		args = append(args, filter.OrgID)
	}
	if filter.State != "" {
		query += ` AND zip_code IN (SELECT zip_code FROM zip_need_scores WHERE state = ?)`
		args = append(args, filter.State)
	}
	if filter.Search != "" {
		query += ` AND item_name LIKE ?`
		args = append(args, "%"+filter.Search+"%")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list capacity")
	}
	defer rows.Close()

	var out []model.EmergencyCapacity
	for rows.Next() {
		var c model.EmergencyCapacity
		err := rows.Scan(
			&c.ID, &c.OrganizationID, &c.UserID, &c.SupplyType, &c.ItemName,
			&c.Quantity, &c.Unit, &c.UnitCost, &c.AvailableDate, &c.ExpiryDate,
			&c.Status, &c.ZipCode, &c.Lat, &c.Lng, &c.ServiceRadiusMiles, &c.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan capacity")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate capacity")
}

func (s *SQLiteStore) DeleteCapacity(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emergency_capacities WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete capacity %d", id)
	}
	return checkRowsAffected(res, "capacity", id)
}

// --- Match results ---

func (s *SQLiteStore) ReplaceMatches(ctx context.Context, solicitationID int64, matches []model.MatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace matches")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM match_results WHERE solicitation_id = ?`, solicitationID); err != nil {
		return eris.Wrapf(err, "sqlite: clear matches for solicitation %d", solicitationID)
	}

	now := time.Now().UTC()
	for i := range matches {
		m := &matches[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO match_results
				(id, solicitation_id, organization_id, score, explanation,
				 capability_overlap, distance_miles, need_score_component,
				 llm_score, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)
		`, m.ID, solicitationID, m.OrganizationID, m.Score, m.Explanation,
			m.CapabilityOverlap, m.DistanceMiles, m.NeedScoreComponent,
			m.LLMScore, now)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert match for org %d", m.OrganizationID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit replace matches")
	}

	zap.L().Info("sqlite: replaced matches",
		zap.Int64("solicitation_id", solicitationID),
		zap.Int("count", len(matches)),
	)
	return nil
}

func (s *SQLiteStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.MatchResult, error) {
	query := `SELECT id, solicitation_id, organization_id, score, explanation,
		capability_overlap, distance_miles, need_score_component, llm_score, created_at
		FROM match_results WHERE 1=1`
	var args []any

	if filter.SolicitationID != 0 {
		query += ` AND solicitation_id = ?`
		args = append(args, filter.SolicitationID)
	}
	if filter.OrganizationID != 0 {
		query += ` AND organization_id = ?`
		args = append(args, filter.OrganizationID)
	}
	query += ` ORDER BY score DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
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
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate matches")
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, name, organization_id, is_admin, created_at)
		VALUES (?,?,?,?,?,?)
	`, u.Email, u.PasswordHash, u.Name, u.OrganizationID, u.IsAdmin, now)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(model.ErrConflict, "email %s already registered", u.Email)
		}
		return nil, eris.Wrap(err, "sqlite: insert user")
	}

	out := *u
	out.CreatedAt = now
	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: user id")
	}
	return &out, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, organization_id, is_admin, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.OrganizationID, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "user %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get user %d", id)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, organization_id, is_admin, created_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.OrganizationID, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "user %s", email)
		}
		return nil, eris.Wrap(err, "sqlite: get user by email")
	}
	return &u, nil
}

func (s *SQLiteStore) SetUserAdmin(ctx context.Context, id int64, isAdmin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, isAdmin, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set admin for user %d", id)
	}
	return checkRowsAffected(res, "user", id)
}

// --- Waste reductions ---

func (s *SQLiteStore) CreateWasteReduction(ctx context.Context, w *model.WasteReduction) (*model.WasteReduction, error) {
	unit := w.Unit
	if unit == "" {
		unit = "lbs"
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO waste_reductions
			(source_org_id, dest_org_id, supply_type, item_name,
			 quantity_rescued, unit, estimated_value, source_zip, dest_zip, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, w.SourceOrgID, w.DestOrgID, w.SupplyType, w.ItemName,
		w.QuantityRescued, unit, w.EstimatedValue, w.SourceZip, w.DestZip, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert waste reduction")
	}

	out := *w
	out.Unit = unit
	out.CreatedAt = now
	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: waste reduction id")
	}
	return &out, nil
}

func (s *SQLiteStore) ListWasteReductions(ctx context.Context) ([]model.WasteReduction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_org_id, dest_org_id, supply_type, item_name,
		       quantity_rescued, unit, estimated_value, source_zip, dest_zip, created_at
		FROM waste_reductions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list waste reductions")
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
			return nil, eris.Wrap(err, "sqlite: scan waste reduction")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate waste reductions")
}

// --- Dashboard ---

func (s *SQLiteStore) Stats(ctx context.Context) (*DashboardStats, error) {
	var st DashboardStats
	err := s.db.QueryRowContext(ctx, `
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
		return nil, eris.Wrap(err, "sqlite: dashboard stats")
	}
	return &st, nil
}

func checkRowsAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %d", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %d", kind, id)
	}
	return nil
}
