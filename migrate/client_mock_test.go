/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	trackmigrate "github.com/acronis/go-trackmigrate"
)

// fakeClient is a scriptable SQLClient for unit tests.
type fakeClient struct {
	env     []string
	pingErr error
	execFn  func(script string) (trackmigrate.ClientResult, error)
	queryFn func(query string) ([][]string, error)
	scripts []string
	queries []string
}

func (c *fakeClient) ExecScript(_ context.Context, script string) (trackmigrate.ClientResult, error) {
	c.scripts = append(c.scripts, script)
	if c.execFn != nil {
		return c.execFn(script)
	}
	return trackmigrate.ClientResult{}, nil
}

func (c *fakeClient) Query(_ context.Context, query string) ([][]string, error) {
	c.queries = append(c.queries, query)
	if c.queryFn != nil {
		return c.queryFn(query)
	}
	return nil, nil
}

func (c *fakeClient) Ping(context.Context) error {
	return c.pingErr
}

func (c *fakeClient) Env() []string {
	return c.env
}

var (
	createTableRe = regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\S+) \(`)
	regclassRe    = regexp.MustCompile(`to_regclass\('([^']+)'\)`)
	fromTableRe   = regexp.MustCompile(`FROM "([^"]+)"`)
	insertRowRe   = regexp.MustCompile(`INSERT INTO "([^"]+)"\s*\("migration_name",\s*"migration_hash"\)\s*VALUES\s*\('([^']*)',\s*'([^']*)'\)`)
)

type fakeRow struct {
	name string
	hash string
}

// fakeDB emulates the behavior the engine relies on from the external client
// and the database behind it: idempotent relation creation, transactional
// application of combined scripts, and the uniqueness constraint on
// migration_name. A failing script applies nothing, mirroring the rollback
// of the enclosing transaction.
type fakeDB struct {
	fakeClient
	tables map[string][]fakeRow
	// failOn aborts any combined script containing the substring.
	failOn     string
	failStderr string
}

func newFakeDB() *fakeDB {
	db := &fakeDB{tables: make(map[string][]fakeRow)}
	db.execFn = db.exec
	db.queryFn = db.query
	return db
}

func (db *fakeDB) exec(script string) (trackmigrate.ClientResult, error) {
	if m := createTableRe.FindStringSubmatch(script); m != nil {
		if _, ok := db.tables[m[1]]; !ok {
			db.tables[m[1]] = nil
		}
		return trackmigrate.ClientResult{}, nil
	}

	if db.failOn != "" && strings.Contains(script, db.failOn) {
		return trackmigrate.ClientResult{Stderr: db.failStderr}, fmt.Errorf("run psql: exit status 3")
	}

	// Apply all bookkeeping inserts or none.
	var pending []struct {
		table string
		row   fakeRow
	}
	for _, m := range insertRowRe.FindAllStringSubmatch(script, -1) {
		table, name, hash := m[1], m[2], m[3]
		for _, row := range db.tables[table] {
			if row.name == name {
				return trackmigrate.ClientResult{
					Stderr: fmt.Sprintf(
						"ERROR: duplicate key value violates unique constraint %q", table+"_migration_name_key"),
				}, fmt.Errorf("run psql: exit status 3")
			}
		}
		pending = append(pending, struct {
			table string
			row   fakeRow
		}{table, fakeRow{name: name, hash: hash}})
	}
	for _, p := range pending {
		db.tables[p.table] = append(db.tables[p.table], p.row)
	}
	return trackmigrate.ClientResult{}, nil
}

func (db *fakeDB) query(query string) ([][]string, error) {
	if m := regclassRe.FindStringSubmatch(query); m != nil {
		if _, ok := db.tables[m[1]]; ok {
			return [][]string{{"t"}}, nil
		}
		return [][]string{{"f"}}, nil
	}

	if m := fromTableRe.FindStringSubmatch(query); m != nil {
		rows := db.tables[m[1]]
		if strings.Contains(query, `"applied_at"`) {
			var out [][]string
			for _, row := range rows {
				out = append(out, []string{row.name, row.hash, "2026-08-23 10:00:00.000000", ""})
			}
			return out, nil
		}
		names := make([]string, 0, len(rows))
		for _, row := range rows {
			names = append(names, row.name)
		}
		sort.Strings(names)
		out := make([][]string, 0, len(names))
		for _, name := range names {
			out = append(out, []string{name})
		}
		return out, nil
	}

	if strings.Contains(query, "SELECT 1") {
		return [][]string{{"1"}}, nil
	}
	return nil, nil
}
