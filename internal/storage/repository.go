package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chitieu/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states for entries pushed to the spreadsheet export.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

type (
	// User is a stored identity with credentials.
	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Session is a stored login session.
	Session struct {
		Token     string
		UserID    string
		ExpiresAt time.Time
	}

	// PendingSyncEntry is the minimal record the sync queue needs.
	PendingSyncEntry struct {
		ID        int64
		Version   int64
		CreatedAt time.Time
	}

	// EntryImage is an uploaded receipt attached to an entry.
	EntryImage struct {
		ID        int64
		EntryID   int64
		ObjectKey string
		CreatedAt time.Time
	}
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ---- users ----

func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, core.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, core.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ListUsers returns the full identity directory, oldest first.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.Identity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.Identity
	for rows.Next() {
		var u core.Identity
		if err := rows.Scan(&u.ID, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ---- sessions ----

func (r *SQLiteRepository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, core.ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// TouchSession pushes the expiry forward on activity.
func (r *SQLiteRepository) TouchSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE token = ?`, expiresAt, token)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ---- entries ----

// ListEntries returns the owner's entries, newest date first.
func (r *SQLiteRepository) ListEntries(ctx context.Context, owner string) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, description, amount_dong, entry_date
		 FROM entries WHERE user_id = ? ORDER BY entry_date DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64, owner string) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, description, amount_dong, entry_date
		 FROM entries WHERE id = ? AND user_id = ?`, id, owner)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	return e, err
}

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.Entry) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (user_id, category, description, amount_dong, entry_date)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Owner, e.Category, e.Description, e.Amount.Dong, e.Date)
	if err != nil {
		return 0, fmt.Errorf("create entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("entry insert id: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", id,
		"description", e.Description,
		"amount_dong", e.Amount.Dong,
		"category", e.Category)

	return id, nil
}

// UpdateEntry patches the row in place, scoped to the owner. The version
// bump and pending status re-queue the row for export sync.
// UpdateEntry patches the row and returns its new version so the caller can
// publish the sync message with the version the export worker will read.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.Entry) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE entries
		 SET category = ?, description = ?, amount_dong = ?, entry_date = ?,
		     sync_status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?
		 RETURNING version`,
		e.Category, e.Description, e.Amount.Dong, e.Date, SyncPending, e.ID, e.Owner).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("update entry: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64, owner string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// CountEntriesByCategory reports how many of the owner's entries still
// carry the category name.
func (r *SQLiteRepository) CountEntriesByCategory(ctx context.Context, owner, category string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE user_id = ? AND category = ?`, owner, category).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries by category: %w", err)
	}
	return n, nil
}

// GetPendingSyncEntries returns entries awaiting export, oldest first.
func (r *SQLiteRepository) GetPendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM entries
		 WHERE sync_status = ? ORDER BY created_at ASC LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncEntry
	for rows.Next() {
		var p PendingSyncEntry
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// GetEntryAnyOwner loads an entry without owner scoping, for the sync
// worker which acts on queue messages rather than user requests.
func (r *SQLiteRepository) GetEntryAnyOwner(ctx context.Context, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, description, amount_dong, entry_date
		 FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	return e, err
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncDone); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Entry marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	return nil
}

// ---- categories ----

// ListCategories returns the owner's categories in insertion order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, category_group FROM categories
		 WHERE user_id = ? ORDER BY id ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &c.Group); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, category_group) VALUES (?, ?, ?)`,
		c.Owner, c.Name, c.Group)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, category_group = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Group, c.ID, c.Owner)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64, owner string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ---- roles ----

func (r *SQLiteRepository) ListRoles(ctx context.Context) ([]core.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM roles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []core.Role
	for rows.Next() {
		var role core.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *SQLiteRepository) GetRoleByName(ctx context.Context, name string) (core.Role, error) {
	var role core.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM roles WHERE name = ?`, name).
		Scan(&role.ID, &role.Name, &role.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Role{}, core.ErrNotFound
	}
	if err != nil {
		return core.Role{}, fmt.Errorf("get role by name: %w", err)
	}
	return role, nil
}

// ListUserRoles returns the role names granted to one identity.
func (r *SQLiteRepository) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ro.name FROM user_roles ur
		 JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id = ? ORDER BY ro.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListAllAssignments returns every role grant across every identity.
func (r *SQLiteRepository) ListAllAssignments(ctx context.Context) ([]core.RoleAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ur.id, ur.user_id, ur.role_id, ro.name
		 FROM user_roles ur
		 JOIN roles ro ON ro.id = ur.role_id
		 ORDER BY ur.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	var out []core.RoleAssignment
	for rows.Next() {
		var a core.RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleName); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GrantRole is idempotent: granting an already held role is a no-op.
func (r *SQLiteRepository) GrantRole(ctx context.Context, userID string, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT(user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RevokeRole(ctx context.Context, userID string, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

// ---- entry images ----

func (r *SQLiteRepository) AddEntryImage(ctx context.Context, entryID int64, objectKey string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entry_images (entry_id, object_key) VALUES (?, ?)`, entryID, objectKey)
	if err != nil {
		return 0, fmt.Errorf("add entry image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("entry image insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListEntryImages(ctx context.Context, entryID int64) ([]EntryImage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entry_id, object_key, created_at FROM entry_images
		 WHERE entry_id = ? ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("list entry images: %w", err)
	}
	defer rows.Close()

	var images []EntryImage
	for rows.Next() {
		var img EntryImage
		if err := rows.Scan(&img.ID, &img.EntryID, &img.ObjectKey, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *SQLiteRepository) DeleteEntryImage(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entry_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry image: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.Entry, error) {
	var e core.Entry
	if err := row.Scan(&e.ID, &e.Owner, &e.Category, &e.Description, &e.Amount.Dong, &e.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Entry{}, err
		}
		return core.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	return e, nil
}
