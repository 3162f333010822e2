package models

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "source_files", SourceFile{}.TableName())
	assert.Equal(t, "declarations", Declaration{}.TableName())
	assert.Equal(t, "module_exports", ModuleExport{}.TableName())
}

func TestSourceFileWithDeclarations(t *testing.T) {
	db := setupTestDB(t)

	file := SourceFile{
		Path:     "src/shapes/Shape.java",
		Language: "java",
		Package:  "shapes",
		Digest:   "abc123",
		Declarations: []Declaration{
			{
				Name:          "Shape",
				QualifiedName: "shapes.Shape",
				Kind:          "interface",
				Package:       "shapes",
				Permits:       datatypes.JSON(`["shapes.Circle","shapes.Square"]`),
				Modifiers:     datatypes.JSON(`["public","sealed"]`),
			},
			{
				Name:          "Circle",
				QualifiedName: "shapes.Circle",
				Kind:          "record",
				Package:       "shapes",
				Interfaces:    datatypes.JSON(`["shapes.Shape"]`),
				Components:    datatypes.JSON(`[{"name":"radius","type":"double"}]`),
			},
		},
	}
	require.NoError(t, db.Create(&file).Error)

	var loaded SourceFile
	require.NoError(t, db.Preload("Declarations").Where("path = ?", file.Path).First(&loaded).Error)
	require.Len(t, loaded.Declarations, 2)
	assert.False(t, loaded.IndexedAt.IsZero())

	var permits []string
	require.NoError(t, json.Unmarshal(loaded.Declarations[0].Permits, &permits))
	assert.Equal(t, []string{"shapes.Circle", "shapes.Square"}, permits)

	var components []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(loaded.Declarations[1].Components, &components))
	require.Len(t, components, 1)
	assert.Equal(t, "radius", components[0].Name)
}

func TestSourceFilePathUnique(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.Create(&SourceFile{Path: "A.java", Language: "java"}).Error)
	assert.Error(t, db.Create(&SourceFile{Path: "A.java", Language: "java"}).Error)
}

func TestModuleExports(t *testing.T) {
	db := setupTestDB(t)

	file := SourceFile{
		Path:     "module-info.java",
		Language: "java",
		Module:   "com.example.app",
		Exports: []ModuleExport{
			{Module: "com.example.app", Package: "com.example.api"},
			{Module: "com.example.app", Package: "com.example.spi"},
		},
	}
	require.NoError(t, db.Create(&file).Error)

	var pkgs []string
	require.NoError(t, db.Model(&ModuleExport{}).Where("module = ?", "com.example.app").Order("package").Pluck("package", &pkgs).Error)
	assert.Equal(t, []string{"com.example.api", "com.example.spi"}, pkgs)
}

func TestDeclarationQueriesByOwner(t *testing.T) {
	db := setupTestDB(t)

	file := SourceFile{Path: "Main.java", Language: "java"}
	for i := range 3 {
		file.Declarations = append(file.Declarations, Declaration{
			Name:          fmt.Sprintf("m%d", i),
			QualifiedName: fmt.Sprintf("Main.m%d", i),
			Kind:          "method",
			Owner:         "Main",
			Static:        i == 0,
		})
	}
	require.NoError(t, db.Create(&file).Error)

	var statics []Declaration
	require.NoError(t, db.Where("owner = ? AND static = ?", "Main", true).Find(&statics).Error)
	require.Len(t, statics, 1)
	assert.Equal(t, "m0", statics[0].Name)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(&SourceFile{}, &Declaration{}, &ModuleExport{}))
	return db
}
