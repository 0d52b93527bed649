package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition expresses a single comparison against a column.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// QuerySortBy describes an ORDER BY clause. Allow whitelists sortable
// columns so request-supplied sort keys can't reach raw SQL.
type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// QueryOption mutates a gorm query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		sortBy := s.SortBy
		if sortBy == "" || (s.Allow != nil && !s.Allow[sortBy]) {
			sortBy = "created_at"
		}
		orderBy := "ASC"
		if strings.EqualFold(s.OrderBy, "desc") {
			orderBy = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", sortBy, orderBy))
	}
}

func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit)
	}
}

func WithLockingUpdate() QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
}

// LockingUpdate is the scope form of WithLockingUpdate, for use with
// db.Scopes inside transactions.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
