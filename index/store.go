package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/db"
	"github.com/oxhq/psitree/models"
	"github.com/oxhq/psitree/symbols"
)

// Store is a symbol index persisted through gorm
type Store struct {
	db *gorm.DB
}

// Open connects to dsn (see db.Connect) and returns a migrated store
func Open(dsn string, debug bool) (*Store, error) {
	conn, err := db.Connect(dsn, debug)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", dsn, err)
	}
	return &Store{db: conn}, nil
}

// NewStore wraps an already migrated connection
func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Put replaces everything recorded for fs.File in one transaction
func (s *Store) Put(ctx context.Context, fs symbols.FileSymbols, digest string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteFile(tx, fs.File); err != nil {
			return err
		}
		file := models.SourceFile{
			Path:     fs.File,
			Language: "java",
			Package:  fs.Package,
			Module:   fs.Module,
			Digest:   digest,
		}
		for _, d := range fs.Declarations {
			row, err := toRow(d)
			if err != nil {
				return fmt.Errorf("encode %s: %w", d, err)
			}
			file.Declarations = append(file.Declarations, row)
		}
		for _, pkg := range fs.Exports {
			file.Exports = append(file.Exports, models.ModuleExport{Module: fs.Module, Package: pkg})
		}
		if err := tx.Create(&file).Error; err != nil {
			return fmt.Errorf("store %s: %w", fs.File, err)
		}
		return nil
	})
}

// RemoveFile drops everything recorded for path
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteFile(tx, path)
	})
}

// children are deleted explicitly; a remote libsql connection may not
// honour the foreign key pragma
func deleteFile(tx *gorm.DB, path string) error {
	var file models.SourceFile
	err := tx.Where("path = ?", path).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Where("file_id = ?", file.ID).Delete(&models.Declaration{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id = ?", file.ID).Delete(&models.ModuleExport{}).Error; err != nil {
		return err
	}
	return tx.Delete(&file).Error
}

// Digest returns the content hash recorded for path
func (s *Store) Digest(ctx context.Context, path string) (string, bool, error) {
	var file models.SourceFile
	err := s.db.WithContext(ctx).Select("digest").Where("path = ?", path).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return file.Digest, true, nil
}

// LookupType returns the type declaration with the given qualified name
func (s *Store) LookupType(ctx context.Context, qualified string) (core.Declaration, bool, error) {
	var rows []models.Declaration
	err := s.db.WithContext(ctx).Preload("File").
		Where("qualified_name = ? AND kind IN ?", qualified, typeKinds()).
		Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return core.Declaration{}, false, err
	}
	d, err := fromRow(rows[0])
	return d, err == nil, err
}

// PackageTypes returns the top-level types of a package, sorted by name
func (s *Store) PackageTypes(ctx context.Context, pkg string) ([]core.Declaration, error) {
	var rows []models.Declaration
	err := s.db.WithContext(ctx).Preload("File").
		Where("package = ? AND owner = ? AND kind IN ?", pkg, "", typeKinds()).
		Order("qualified_name").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// HasPackage reports whether pkg or one of its subpackages holds indexed files
func (s *Store) HasPackage(ctx context.Context, pkg string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SourceFile{}).
		Where("package = ? OR package LIKE ?", pkg, pkg+".%").
		Count(&count).Error
	return count > 0, err
}

// Members returns the member declarations of the type owner
func (s *Store) Members(ctx context.Context, owner string) ([]core.Declaration, error) {
	var rows []models.Declaration
	err := s.db.WithContext(ctx).Preload("File").
		Where("owner = ?", owner).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// LookupModule returns the declaration of a named module
func (s *Store) LookupModule(ctx context.Context, name string) (core.Declaration, bool, error) {
	var rows []models.Declaration
	err := s.db.WithContext(ctx).Preload("File").
		Where("qualified_name = ? AND kind = ?", name, string(core.DeclModule)).
		Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return core.Declaration{}, false, err
	}
	d, err := fromRow(rows[0])
	return d, err == nil, err
}

// ModuleExports returns the packages a module exports
func (s *Store) ModuleExports(ctx context.Context, module string) ([]string, error) {
	var pkgs []string
	err := s.db.WithContext(ctx).Model(&models.ModuleExport{}).
		Where("module = ?", module).Order("id").Pluck("package", &pkgs).Error
	return pkgs, err
}

// Types returns every indexed type declaration, for seeding a type hierarchy
func (s *Store) Types(ctx context.Context) ([]core.Declaration, error) {
	var rows []models.Declaration
	err := s.db.WithContext(ctx).Preload("File").
		Where("kind IN ?", typeKinds()).Order("qualified_name").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// EnumConstants returns every indexed enum constant in indexing order
func (s *Store) EnumConstants(ctx context.Context) ([]core.Declaration, error) {
	var rows []models.Declaration
	err := s.db.WithContext(ctx).Preload("File").
		Where("kind = ?", string(core.DeclEnumConstant)).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// Stats counts the indexed rows per table
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)
	for name, model := range map[string]any{
		"files":        &models.SourceFile{},
		"declarations": &models.Declaration{},
		"exports":      &models.ModuleExport{},
	} {
		var n int64
		if err := s.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			return nil, err
		}
		stats[name] = n
	}
	return stats, nil
}

func typeKinds() []string {
	return []string{
		string(core.DeclClass), string(core.DeclInterface), string(core.DeclEnum),
		string(core.DeclRecord), string(core.DeclAnnotation),
	}
}

func toRow(d core.Declaration) (models.Declaration, error) {
	row := models.Declaration{
		Name:          d.Name,
		QualifiedName: d.QualifiedName,
		Kind:          string(d.Kind),
		Owner:         d.Owner,
		Package:       d.Package,
		Module:        d.Module,
		Static:        d.Static,
		TypeName:      d.TypeName,
		Superclass:    d.Superclass,
		SpanStart:     d.Span.Start,
		SpanEnd:       d.Span.End,
	}
	var err error
	if row.Interfaces, err = jsonList(d.Interfaces); err != nil {
		return row, err
	}
	if row.Components, err = jsonList(d.Components); err != nil {
		return row, err
	}
	if row.Permits, err = jsonList(d.Permits); err != nil {
		return row, err
	}
	row.Modifiers, err = jsonList(d.Modifiers)
	return row, err
}

func jsonList[T any](items []T) (datatypes.JSON, error) {
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	return datatypes.JSON(raw), err
}

func fromRow(row models.Declaration) (core.Declaration, error) {
	d := core.Declaration{
		Name:          row.Name,
		QualifiedName: row.QualifiedName,
		Kind:          core.DeclKind(row.Kind),
		Owner:         row.Owner,
		Package:       row.Package,
		Module:        row.Module,
		File:          row.File.Path,
		Span:          core.Span{Start: row.SpanStart, End: row.SpanEnd},
		Static:        row.Static,
		TypeName:      row.TypeName,
		Superclass:    row.Superclass,
	}
	for _, field := range []struct {
		raw datatypes.JSON
		dst any
	}{
		{row.Interfaces, &d.Interfaces},
		{row.Components, &d.Components},
		{row.Permits, &d.Permits},
		{row.Modifiers, &d.Modifiers},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return d, fmt.Errorf("decode %s: %w", row.QualifiedName, err)
		}
	}
	return d, nil
}

func fromRows(rows []models.Declaration) ([]core.Declaration, error) {
	out := make([]core.Declaration, 0, len(rows))
	for _, row := range rows {
		d, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
