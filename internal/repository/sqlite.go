package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/autobid/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			slots TEXT NOT NULL DEFAULT '{}',
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			passes INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS course_results (
			run_id TEXT NOT NULL,
			code TEXT NOT NULL,
			name TEXT,
			state TEXT NOT NULL,
			outcome TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			PRIMARY KEY (run_id, code),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			code TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_courses_position ON courses(position)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// ==================== Course Methods ====================

func encodeSlots(slots map[models.ClassType]models.RankedSlots) (string, error) {
	if slots == nil {
		return "{}", nil
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSlots(raw string) (map[models.ClassType]models.RankedSlots, error) {
	slots := make(map[models.ClassType]models.RankedSlots)
	if raw == "" {
		return slots, nil
	}
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return slots, nil
}

// ListCourses returns the catalog in priority order
func (r *Repository) ListCourses(ctx context.Context) ([]models.CourseSpec, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, name, slots FROM courses ORDER BY position, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []models.CourseSpec{}
	for rows.Next() {
		var c models.CourseSpec
		var raw string
		if err := rows.Scan(&c.Code, &c.Name, &raw); err != nil {
			return nil, err
		}
		if c.Slots, err = decodeSlots(raw); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetCourse returns one course by code
func (r *Repository) GetCourse(ctx context.Context, code string) (*models.CourseSpec, error) {
	var c models.CourseSpec
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT code, name, slots FROM courses WHERE code = ?`, code).Scan(&c.Code, &c.Name, &raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Slots, err = decodeSlots(raw); err != nil {
		return nil, err
	}
	return &c, nil
}

// CourseExists checks if a course code is in the catalog
func (r *Repository) CourseExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE code = ?`, code).Scan(&count)
	return count > 0, err
}

// CreateCourse appends a course at the end of the catalog
func (r *Repository) CreateCourse(ctx context.Context, course models.CourseSpec) error {
	raw, err := encodeSlots(course.Slots)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO courses (code, name, slots, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM courses))
	`, course.Code, course.Name, raw)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateCourse replaces a course, keeping its position. The code may change.
func (r *Repository) UpdateCourse(ctx context.Context, code string, course models.CourseSpec) error {
	raw, err := encodeSlots(course.Slots)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE courses SET code = ?, name = ?, slots = ? WHERE code = ?`,
		course.Code, course.Name, raw, code)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteCourse removes a course from the catalog
func (r *Repository) DeleteCourse(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE code = ?`, code)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ReorderCourses assigns positions in the order given
func (r *Repository) ReorderCourses(ctx context.Context, codes []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, code := range codes {
		res, err := tx.ExecContext(ctx, `UPDATE courses SET position = ? WHERE code = ?`, i+1, code)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceCourses swaps the whole catalog for courses, in order
func (r *Repository) ReplaceCourses(ctx context.Context, courses []models.CourseSpec) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM courses`); err != nil {
		return err
	}
	for i, c := range courses {
		raw, err := encodeSlots(c.Slots)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO courses (code, name, slots, position) VALUES (?, ?, ?, ?)`,
			c.Code, c.Name, raw, i+1)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== Settings Methods ====================

// GetSetting retrieves a setting value
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting updates a setting value
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// DeleteSetting removes a setting so its configured default applies again
func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

// ListSettings returns every stored setting ordered by key
func (r *Repository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := []models.Setting{}
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// validTables is the whitelist of tables that can be cleared
var validTables = map[string]bool{
	"courses":        true,
	"runs":           true,
	"course_results": true,
	"attempts":       true,
	"settings":       true,
}

// ClearTable deletes all rows from a whitelisted table
func (r *Repository) ClearTable(ctx context.Context, table string) error {
	// Validate table name against whitelist
	if !validTables[table] {
		return ErrInvalidTable
	}

	// Safe to use string concatenation now that we've validated the table name
	_, err := r.db.ExecContext(ctx, "DELETE FROM "+table)
	return err
}

// ==================== Run Methods ====================

// CreateRun records the start of a run
func (r *Repository) CreateRun(ctx context.Context, run models.Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, method, status, passes, message, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Method, string(run.Status), run.Passes, run.Message, run.StartedAt.UTC())
	return err
}

// FinishRun records how a run ended
func (r *Repository) FinishRun(ctx context.Context, id string, status models.RunStatus, passes int, message string, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, passes = ?, message = ?, finished_at = ? WHERE id = ?
	`, string(status), passes, message, finishedAt.UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const runColumns = `id, method, status, passes, message, started_at, finished_at`

func scanRun(scan func(dest ...any) error) (models.Run, error) {
	var run models.Run
	var status string
	var message sql.NullString
	var finished sql.NullTime
	if err := scan(&run.ID, &run.Method, &status, &run.Passes, &message, &run.StartedAt, &finished); err != nil {
		return run, err
	}
	run.Status = models.RunStatus(status)
	run.Message = message.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

// GetRun returns one run by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first; limit <= 0 returns all
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveCourseResult inserts or replaces the result of a course in a run
func (r *Repository) SaveCourseResult(ctx context.Context, runID string, result models.CourseResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO course_results (run_id, code, name, state, outcome, attempts, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, result.Code, result.Name, string(result.State), string(result.Outcome), result.Attempts, result.Message)
	return err
}

// ListCourseResults returns the results of a run ordered by catalog position at the time
func (r *Repository) ListCourseResults(ctx context.Context, runID string) ([]models.CourseResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name, state, outcome, attempts, message
		FROM course_results WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.CourseResult{}
	for rows.Next() {
		var res models.CourseResult
		var name, outcome, message sql.NullString
		var state string
		if err := rows.Scan(&res.Code, &name, &state, &outcome, &res.Attempts, &message); err != nil {
			return nil, err
		}
		res.Name = name.String
		res.State = models.CourseState(state)
		res.Outcome = models.OutcomeKind(outcome.String)
		res.Message = message.String
		results = append(results, res)
	}
	return results, rows.Err()
}

// AddAttempt records one submit attempt
func (r *Repository) AddAttempt(ctx context.Context, a models.Attempt) (int64, error) {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, code, attempt, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.RunID, a.Code, a.Attempt, string(a.Outcome), a.Message, createdAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAttempts returns the attempts of a run in order
func (r *Repository) ListAttempts(ctx context.Context, runID string) ([]models.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, code, attempt, outcome, message, created_at
		FROM attempts WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []models.Attempt{}
	for rows.Next() {
		var a models.Attempt
		var outcome string
		var message sql.NullString
		if err := rows.Scan(&a.ID, &a.RunID, &a.Code, &a.Attempt, &outcome, &message, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Outcome = models.OutcomeKind(outcome)
		a.Message = message.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
