package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"sentra.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Roles and scopes are stored as
// JSON arrays so the schema stays flat.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, email, full_name, password_hash, roles, scopes, active, created_at, last_login`

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, normalizeEmail(email))
	return scanUser(row)
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = normalizeEmail(u.Email)
	roles, _ := json.Marshal(u.Roles)
	scopes, _ := json.Marshal(u.Scopes)
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, full_name, password_hash, roles, scopes, active)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, roles, scopes, u.Active,
	)
	return err
}

func (s *PGStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login=$2 where id=$1`, userID, at.UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FindAPIKey(ctx context.Context, key string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`select key, owner_id, name, scopes, active, created_at, expires_at from api_keys where key=$1`, key)
	var (
		k      APIKey
		scopes []byte
	)
	if err := row.Scan(&k.Key, &k.OwnerID, &k.Name, &scopes, &k.Active, &k.CreatedAt, &k.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(scopes, &k.Scopes)
	return &k, nil
}

func (s *PGStore) CreateAPIKey(ctx context.Context, k *APIKey) error {
	if k.Key == "" {
		k.Key = ids.NewAPIKey()
	}
	scopes, _ := json.Marshal(k.Scopes)
	_, err := s.db.ExecContext(ctx,
		`insert into api_keys(key, owner_id, name, scopes, active, expires_at)
		 values($1,$2,$3,$4,$5,$6)`,
		k.Key, k.OwnerID, k.Name, scopes, k.Active, k.ExpiresAt,
	)
	return err
}

func (s *PGStore) RevokeAPIKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		`update api_keys set active=false where key=$1`, key)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListAPIKeys(ctx context.Context, ownerID string) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`select key, owner_id, name, scopes, active, created_at, expires_at
		 from api_keys where ($1 = '' or owner_id=$1) order by created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		var (
			k      APIKey
			scopes []byte
		)
		if err := rows.Scan(&k.Key, &k.OwnerID, &k.Name, &scopes, &k.Active, &k.CreatedAt, &k.ExpiresAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(scopes, &k.Scopes)
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u      User
		roles  []byte
		scopes []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &roles, &scopes, &u.Active, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(roles, &u.Roles)
	_ = json.Unmarshal(scopes, &u.Scopes)
	return &u, nil
}
