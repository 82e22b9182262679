package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return db.Order(s.Field + " " + dir)
}

type Limit struct {
	N      int
	Offset int
}

func (s Limit) Apply(db *gorm.DB) *gorm.DB {
	db = db.Limit(s.N)
	if s.Offset > 0 {
		db = db.Offset(s.Offset)
	}
	return db
}
