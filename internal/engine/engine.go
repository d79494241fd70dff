package engine

import (
	"github.com/lazypower/mem/internal/store"
	"github.com/rs/zerolog"
)

// Engine answers queries that span more than one store table.
type Engine struct {
	DB  *store.DB
	log zerolog.Logger
}

// New creates a new Engine.
func New(db *store.DB, log zerolog.Logger) *Engine {
	return &Engine{DB: db, log: log}
}
