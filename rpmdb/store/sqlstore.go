package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// SQLStore keeps headers and indexes in a libsql (SQLite) database.
type SQLStore struct {
	db     *sql.DB
	cookie uuid.UUID
}

// OpenSQL opens the libsql database at dsn, e.g. "file:/var/lib/rpm/rpmdb.sqlite",
// and creates the schema when missing.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// init sets up the tables and the database cookie.
func (s *SQLStore) init(ctx context.Context) error {
	createTables := []string{
		`CREATE TABLE IF NOT EXISTS headers (num INTEGER PRIMARY KEY, blob BLOB NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS indexes (tag INTEGER NOT NULL, key BLOB NOT NULL, value BLOB NOT NULL, PRIMARY KEY (tag, key))`,
		`CREATE TABLE IF NOT EXISTS meta (name TEXT PRIMARY KEY, value BLOB NOT NULL)`,
	}
	for _, query := range createTables {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'cookie'`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.cookie = uuid.New()
		_, err = s.db.ExecContext(ctx, `INSERT INTO meta (name, value) VALUES ('cookie', ?)`, s.cookie[:])
		return err
	case err != nil:
		return err
	}
	s.cookie, err = uuid.FromBytes(raw)
	return err
}

func (s *SQLStore) Get(ctx context.Context, tag header.Tag, key []byte) (*indexing.Set, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM indexes WHERE tag = ? AND key = ?`, uint32(tag), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSet(data)
}

func (s *SQLStore) Put(ctx context.Context, tag header.Tag, key []byte, set *indexing.Set) error {
	if set.Count() == 0 {
		return s.Delete(ctx, tag, key)
	}
	data, err := encodeSet(set)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO indexes (tag, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (tag, key) DO UPDATE SET value = excluded.value`,
		uint32(tag), key, data)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, tag header.Tag, key []byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM indexes WHERE tag = ? AND key = ?`, uint32(tag), key)
	return err
}

func (s *SQLStore) Header(ctx context.Context, num uint32) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM headers WHERE num = ?`, num).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return blob, err
}

func (s *SQLStore) PutHeader(ctx context.Context, num uint32, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO headers (num, blob) VALUES (?, ?)
		 ON CONFLICT (num) DO UPDATE SET blob = excluded.blob`,
		num, blob)
	return err
}

func (s *SQLStore) DeleteHeader(ctx context.Context, num uint32) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM headers WHERE num = ?`, num)
	return err
}

func (s *SQLStore) NextInstance(ctx context.Context) (uint32, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int64 = 1
	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'next'`).Scan(&raw)
	switch {
	case err == nil:
		if _, scanErr := fmt.Sscan(string(raw), &next); scanErr != nil {
			return 0, common.Corruptf("instance counter %q", raw)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}
	if next > 1<<32-1 {
		return 0, common.WrapError(common.ErrResourceExhausted, "header instance numbers")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (name, value) VALUES ('next', ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		[]byte(fmt.Sprint(next+1)))
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint32(next), nil
}

func (s *SQLStore) Cookie(context.Context) (uuid.UUID, error) {
	return s.cookie, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
