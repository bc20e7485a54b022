package tester

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/plm/internal/model"
	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Account is the header value used by tests for mutating requests.
const Account = "Milano|Ufficio Tecnico|mrossi"

func init() {
	_ = os.Setenv("ENV", "test")
	logrus.SetLevel(logrus.WarnLevel)
}

// NewDB opens a migrated sqlite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "plm.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	// single writer, as config.GetDb does for sqlite
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	return db
}

// NewStore returns a store over a fresh test database.
func NewStore(t testing.TB) store.Store {
	return store.NewGormStore(NewDB(t))
}

// NewRegistry loads the default configuration files into a temp directory.
func NewRegistry(t testing.TB) *registry.Registry {
	t.Helper()

	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	return reg
}

// NewDirectory returns an account directory holding the test account.
func NewDirectory(t testing.TB) *registry.Directory {
	t.Helper()

	path := filepath.Join(t.TempDir(), registry.AccountsFile)
	content := "stabilimento,gruppo,account\nMilano,Ufficio Tecnico,mrossi\nTorino,Acquisti,lbianchi\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write accounts: %v", err)
	}

	dir, err := registry.NewDirectory(path)
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}

	return dir
}

// Context returns a background context cancelled at test cleanup.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx
}
