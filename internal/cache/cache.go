// =============================================================================
// PO Reconcile - Reference Cache
// =============================================================================
//
// This module is the local sqlite mirror of the external system's reference
// tables (accounts, catalog items, vendors, departments). The sync command
// writes it; the reconciliation engine only reads it.
//
// The schema is migrated on open. Every row carries a sandbox flag so the
// production and sandbox partitions can live in one file; all lookups are
// constrained to the caller's environment.
//
// =============================================================================

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/types"
)

// Store is the sqlite-backed reference cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path and migrates
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// migrate creates the reference tables if they do not exist yet.
func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id          TEXT PRIMARY KEY,
		number      TEXT NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		sandbox     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_number ON accounts(number);

	CREATE TABLE IF NOT EXISTS items (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		item_number TEXT NOT NULL DEFAULT '',
		item_type   TEXT NOT NULL DEFAULT '',
		base_price  TEXT,
		inactive    INTEGER NOT NULL DEFAULT 0,
		sandbox     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);
	CREATE INDEX IF NOT EXISTS idx_items_number ON items(item_number);

	CREATE TABLE IF NOT EXISTS vendors (
		id      TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		sandbox INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS departments (
		id      TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		sandbox INTEGER NOT NULL DEFAULT 0
	);`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNT LOOKUP
// =============================================================================

// FindAccount resolves an external account identifier to the cached account
// record in the given environment. Returns errs.ErrNotFound when absent.
func (s *Store) FindAccount(ctx context.Context, externalID string, env types.Environment) (*types.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, number, name, sandbox FROM accounts WHERE id = ? AND sandbox = ?`,
		externalID, boolToInt(env.Sandbox()))

	var acct types.Account
	var sandbox int
	if err := row.Scan(&acct.ID, &acct.Number, &acct.Name, &sandbox); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", externalID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("account %s: %w", externalID, err)
	}
	acct.Sandbox = sandbox != 0

	return &acct, nil
}

// =============================================================================
// ITEM LOOKUP
// =============================================================================

// itemMatcher is one tier of the layered item resolution strategy. Tiers are
// tried in order; the first non-empty, non-excluded result wins. Keeping the
// tiers as data (rather than nested conditionals) lets each be tested on its
// own.
type itemMatcher struct {
	// tag names the strategy in logs.
	tag string

	// where is the SQL predicate fragment for this tier. instr() is used
	// instead of LIKE because the external system's name matching is
	// case-sensitive and sqlite's LIKE is not.
	where string

	// argCount is how many times the mapped name binds into the predicate.
	argCount int
}

// itemMatchers is the ordered strategy list:
//  1. catalog name contains the mapped name
//  2. item number contains the mapped name
//  3. either field contains it, constrained to non-inventory items
var itemMatchers = []itemMatcher{
	{tag: "name", where: `instr(name, ?) > 0`, argCount: 1},
	{tag: "number", where: `instr(item_number, ?) > 0`, argCount: 1},
	{tag: "noninventory", where: `(instr(name, ?) > 0 OR instr(item_number, ?) > 0) AND item_type = 'noninventory'`, argCount: 2},
}

// FindItem resolves a mapped catalog name to one canonical item record using
// the layered matching strategy. The item whose number equals excludedNumber
// is never selected; when it is the only candidate the error is
// errs.ErrExcluded (distinct from errs.ErrNotFound) so the caller can log
// the specific reason before keeping the line as an expense.
func (s *Store) FindItem(ctx context.Context, mappedName string, env types.Environment, excludedNumber string) (*types.Item, error) {
	for _, m := range itemMatchers {
		item, err := s.queryItem(ctx, m, mappedName, env, excludedNumber)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("item %q (%s tier): %w", mappedName, m.tag, err)
		}
		return item, nil
	}

	// Nothing survived the exclusion filter. Probe once more without it to
	// tell "the only match is the excluded item" apart from "no match".
	if excludedNumber != "" {
		probe := itemMatcher{
			tag:      "excluded-probe",
			where:    `(instr(name, ?) > 0 OR instr(item_number, ?) > 0)`,
			argCount: 2,
		}
		if _, err := s.queryItem(ctx, probe, mappedName, env, ""); err == nil {
			return nil, fmt.Errorf("item %q resolves only to excluded item %s: %w",
				mappedName, excludedNumber, errs.ErrExcluded)
		}
	}

	return nil, fmt.Errorf("item %q: %w", mappedName, errs.ErrNotFound)
}

// queryItem runs a single matcher tier. sql.ErrNoRows is passed through so
// FindItem can fall to the next tier.
func (s *Store) queryItem(ctx context.Context, m itemMatcher, mappedName string, env types.Environment, excludedNumber string) (*types.Item, error) {
	query := `SELECT id, name, item_number, item_type, base_price, inactive, sandbox
		FROM items
		WHERE ` + m.where + `
		  AND inactive = 0
		  AND sandbox = ?`
	args := make([]any, 0, m.argCount+2)
	for i := 0; i < m.argCount; i++ {
		args = append(args, mappedName)
	}
	args = append(args, boolToInt(env.Sandbox()))
	if excludedNumber != "" {
		query += ` AND item_number != ?`
		args = append(args, excludedNumber)
	}
	query += ` ORDER BY id LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)

	var item types.Item
	var basePrice sql.NullString
	var inactive, sandbox int
	if err := row.Scan(&item.ID, &item.Name, &item.Number, &item.Type, &basePrice, &inactive, &sandbox); err != nil {
		return nil, err
	}
	item.Inactive = inactive != 0
	item.Sandbox = sandbox != 0
	if basePrice.Valid {
		price, err := decimal.NewFromString(basePrice.String)
		if err != nil {
			return nil, fmt.Errorf("bad base_price %q on item %s: %w", basePrice.String, item.ID, err)
		}
		item.BasePrice = &price
	}

	return &item, nil
}

// =============================================================================
// UPSERTS (sync command only)
// =============================================================================

// UpsertAccounts writes account records into the cache, replacing existing
// rows by external id.
func (s *Store) UpsertAccounts(ctx context.Context, accounts []types.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO accounts (id, number, name, sandbox) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET number = excluded.number, name = excluded.name, sandbox = excluded.sandbox`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range accounts {
			if _, err := stmt.ExecContext(ctx, a.ID, a.Number, a.Name, boolToInt(a.Sandbox)); err != nil {
				return fmt.Errorf("account %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// UpsertItems writes catalog item records into the cache.
func (s *Store) UpsertItems(ctx context.Context, items []types.Item) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (id, name, item_number, item_type, base_price, inactive, sandbox)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, item_number = excluded.item_number,
				item_type = excluded.item_type, base_price = excluded.base_price,
				inactive = excluded.inactive, sandbox = excluded.sandbox`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, it := range items {
			var price any
			if it.BasePrice != nil {
				price = it.BasePrice.String()
			}
			if _, err := stmt.ExecContext(ctx, it.ID, it.Name, it.Number, string(it.Type),
				price, boolToInt(it.Inactive), boolToInt(it.Sandbox)); err != nil {
				return fmt.Errorf("item %s: %w", it.ID, err)
			}
		}
		return nil
	})
}

// UpsertVendors writes vendor records into the cache.
func (s *Store) UpsertVendors(ctx context.Context, vendors []types.Vendor) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO vendors (id, name, sandbox) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, sandbox = excluded.sandbox`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, v := range vendors {
			if _, err := stmt.ExecContext(ctx, v.ID, v.Name, boolToInt(v.Sandbox)); err != nil {
				return fmt.Errorf("vendor %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

// UpsertDepartments writes department records into the cache.
func (s *Store) UpsertDepartments(ctx context.Context, departments []types.Department) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO departments (id, name, sandbox) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, sandbox = excluded.sandbox`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range departments {
			if _, err := stmt.ExecContext(ctx, d.ID, d.Name, boolToInt(d.Sandbox)); err != nil {
				return fmt.Errorf("department %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
