// Package migrations applies the embedded schema of each storage backend and
// records every applied version in a schema_migrations table.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Migration is one embedded SQL file.
type Migration struct {
	Version    string // file name without .sql, e.g. "001_init"
	Statements []string
}

// ledger is a backend that can run statements and remember applied versions.
type ledger interface {
	ensure(ctx context.Context) error
	applied(ctx context.Context) (map[string]bool, error)
	exec(ctx context.Context, stmt string) error
	record(ctx context.Context, version string) error
}

// load reads dir from fsys in lexical order. With split, each file is cut
// into single statements for drivers without multi-statement Exec.
func load(fsys fs.FS, dir string, split bool) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	migs := make([]Migration, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		m := Migration{Version: strings.TrimSuffix(file, ".sql")}
		switch {
		case split:
			if err := validateNoSemicolonInStrings(string(data)); err != nil {
				return nil, fmt.Errorf("validate migration %s: %w", file, err)
			}
			m.Statements = splitStatements(string(data))
		case strings.TrimSpace(string(data)) != "":
			m.Statements = []string{string(data)}
		}
		migs = append(migs, m)
	}
	return migs, nil
}

// apply runs every migration the ledger has not seen and returns the applied versions.
func apply(ctx context.Context, l ledger, migs []Migration) ([]string, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := l.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migs {
		if done[m.Version] {
			continue
		}
		for _, stmt := range m.Statements {
			if err := l.exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
		if err := l.record(ctx, m.Version); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// splitStatements splits SQL content into individual statements by semicolon.
//
// The splitter does NOT handle semicolons inside string literals or /* */
// comments. Migrations split this way use -- comments only and keep
// semicolons out of strings; validateNoSemicolonInStrings enforces the first rule.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects semicolons inside single-quoted strings.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			// '' is an escaped quote
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal")
		}
	}
	return nil
}
