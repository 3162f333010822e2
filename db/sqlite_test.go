package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oxhq/psitree/models"
)

func TestConnect(t *testing.T) {
	tmp := t.TempDir()
	tests := []struct {
		name          string
		dsn           string
		debug         bool
		expectedError bool
		errorContains string
	}{
		{
			name: "memory database",
			dsn:  ":memory:",
		},
		{
			name:  "memory database with debug logging",
			dsn:   ":memory:",
			debug: true,
		},
		{
			name: "file database",
			dsn:  filepath.Join(tmp, "index.db"),
		},
		{
			name: "nested directory creation",
			dsn:  filepath.Join(tmp, "nested", "path", "index.db"),
		},
		{
			name:          "libsql URL without a server",
			dsn:           "libsql://127.0.0.1:19999",
			expectedError: true,
			errorContains: "failed to connect",
		},
		{
			name:          "http URL without a server",
			dsn:           "http://127.0.0.1:19999/db",
			expectedError: true,
			errorContains: "failed to connect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Connect(tt.dsn, tt.debug)
			if tt.expectedError {
				require.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, db)
				return
			}
			require.NoError(t, err)
			sqlDB, err := db.DB()
			require.NoError(t, err)
			defer sqlDB.Close()
			require.NoError(t, sqlDB.Ping())

			for _, table := range []string{"source_files", "declarations", "module_exports"} {
				assert.True(t, db.Migrator().HasTable(table), "table %s should exist", table)
			}
			testBasicOperations(t, db)
		})
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		dsn      string
		expected bool
	}{
		{"http://example.com", true},
		{"https://example.com", true},
		{"libsql://test.turso.io", true},
		{"/path/to/index.db", false},
		{"index.db", false},
		{":memory:", false},
		{"", false},
		{"http", false},
		{"http:/", false},
		{"libsq", false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.expected, isURL(tt.dsn))
		})
	}
}

func TestConnectForeignKeysEnabled(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)

	var fkEnabled int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fkEnabled).Error)
	assert.Equal(t, 1, fkEnabled)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasColumn(&models.Declaration{}, "qualified_name"))
}

func TestDeleteFileCascades(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)
	testBasicOperations(t, db)

	var file models.SourceFile
	require.NoError(t, db.Where("path = ?", "src/app/Main.java").First(&file).Error)
	require.NoError(t, db.Delete(&file).Error)

	var count int64
	require.NoError(t, db.Model(&models.Declaration{}).Where("file_id = ?", file.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func testBasicOperations(t *testing.T, db *gorm.DB) {
	t.Helper()
	file := models.SourceFile{
		Path:     "src/app/Main.java",
		Language: "java",
		Package:  "app",
		Declarations: []models.Declaration{
			{Name: "Main", QualifiedName: "app.Main", Kind: "class", Package: "app"},
			{Name: "run", QualifiedName: "app.Main.run", Kind: "method", Owner: "app.Main", Package: "app"},
		},
	}
	require.NoError(t, db.Create(&file).Error)
	assert.NotZero(t, file.ID)

	var decls []models.Declaration
	require.NoError(t, db.Where("owner = ?", "app.Main").Find(&decls).Error)
	require.Len(t, decls, 1)
	assert.Equal(t, "run", decls[0].Name)
	assert.Equal(t, file.ID, decls[0].FileID)
}
