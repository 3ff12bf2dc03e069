// Package migratetest applies the embedded SQL migrations to an in-memory
// sqlite database so tests run against the same schema production gets.
package migratetest

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/migrate"
)

// postgres spellings that sqlite rejects or would not parse back into time.Time.
var sqliteDialect = strings.NewReplacer(
	"timestamptz", "datetime",
	"DEFAULT now()", "DEFAULT CURRENT_TIMESTAMP",
	"jsonb", "text",
)

// SQLite rewrites every migration in src for sqlite. Statements are kept in
// order and the goose annotations are untouched.
func SQLite(src fs.FS) (fs.FS, error) {
	names, err := fs.Glob(src, "*.sql")
	if err != nil {
		return nil, err
	}
	out := fstest.MapFS{}
	for _, name := range names {
		body, err := fs.ReadFile(src, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out[name] = &fstest.MapFile{Data: []byte(sqliteDialect.Replace(string(body)))}
	}
	return out, nil
}

// Open returns a fresh in-memory database with foreign keys enforced and
// every Up section applied.
func Open(t testing.TB, name string) *gorm.DB {
	t.Helper()
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrations, err := SQLite(migrate.Migrations())
	if err != nil {
		t.Fatalf("rewrite migrations: %v", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations)
	if err != nil {
		t.Fatalf("goose provider: %v", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	return conn
}
