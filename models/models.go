package models

import (
	"time"

	"gorm.io/datatypes"
)

// SourceFile is one indexed compilation unit
type SourceFile struct {
	ID       uint   `gorm:"primaryKey"`
	Path     string `gorm:"type:varchar(1024);uniqueIndex;not null"`
	Language string `gorm:"type:varchar(50);not null"`
	Package  string `gorm:"type:varchar(512);index"`
	Module   string `gorm:"type:varchar(255);index"`

	// SHA256 of the content, to skip unchanged files on re-index
	Digest string `gorm:"type:varchar(64)"`

	IndexedAt time.Time `gorm:"autoUpdateTime"`

	// Relationships
	Declarations []Declaration  `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
	Exports      []ModuleExport `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
}

// Declaration is a type or member declaration visible outside its file
type Declaration struct {
	ID            uint   `gorm:"primaryKey"`
	FileID        uint   `gorm:"index;not null"`
	Name          string `gorm:"type:varchar(255);index;not null"`
	QualifiedName string `gorm:"type:varchar(1024);index;not null"`
	Kind          string `gorm:"type:varchar(20);index;not null"`
	Owner         string `gorm:"type:varchar(1024);index"` // qualified name of the enclosing type
	Package       string `gorm:"type:varchar(512);index"`
	Module        string `gorm:"type:varchar(255)"`

	Static     bool   `gorm:"default:false"`
	TypeName   string `gorm:"type:varchar(512)"`
	Superclass string `gorm:"type:varchar(512)"`

	// Lists are stored as JSON arrays
	Interfaces datatypes.JSON `gorm:"type:jsonb"`
	Components datatypes.JSON `gorm:"type:jsonb"`
	Permits    datatypes.JSON `gorm:"type:jsonb"`
	Modifiers  datatypes.JSON `gorm:"type:jsonb"`

	SpanStart int
	SpanEnd   int

	File SourceFile `gorm:"foreignKey:FileID"`
}

// ModuleExport is one exports directive of a module declaration
type ModuleExport struct {
	ID      uint   `gorm:"primaryKey"`
	FileID  uint   `gorm:"index;not null"`
	Module  string `gorm:"type:varchar(255);index;not null"`
	Package string `gorm:"type:varchar(512);not null"`
}

// TableName customizations for cleaner names
func (SourceFile) TableName() string   { return "source_files" }
func (Declaration) TableName() string  { return "declarations" }
func (ModuleExport) TableName() string { return "module_exports" }
