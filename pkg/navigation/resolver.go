// Package navigation resolves board ancestry paths into breadcrumb trails.
// Resolution is tolerant: a path segment that no longer exists in the tree is
// rendered from the last title this process saw for it, and everything after
// the missing segment is dropped.
package navigation

import (
	"time"

	"spatial-canvas-core/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Crumb is a single entry of a breadcrumb trail.
type Crumb struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// Lookup resolves a board id against the live tree. ok is false when the id
// no longer names a board.
type Lookup func(id uuid.UUID) (title string, ok bool)

// DefaultRootTitle labels the synthetic root crumb when no project name is configured.
const DefaultRootTitle = "Canvas"

// fallbackTitle stands in for a vanished board with no remembered title.
const fallbackTitle = "Board"

type Resolver struct {
	rootTitle string
	titles    *cache.Cache
	logger    logger.ILogger
}

func NewResolver(rootTitle string, log logger.ILogger) *Resolver {
	if rootTitle == "" {
		rootTitle = DefaultRootTitle
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	// Titles outlive the boards they belong to on purpose: they are the
	// best-effort fallback for trails that reference deleted boards. One hour
	// of memory with a 10 minute sweep is plenty for an interactive session.
	return &Resolver{
		rootTitle: rootTitle,
		titles:    cache.New(1*time.Hour, 10*time.Minute),
		logger:    log,
	}
}

// Remember records the current title for a board so later trails can name it
// even after the board disappears.
func (r *Resolver) Remember(id uuid.UUID, title string) {
	if id == uuid.Nil || title == "" {
		return
	}
	r.titles.Set(id.String(), title, cache.DefaultExpiration)
}

// Forget drops a remembered title.
func (r *Resolver) Forget(id uuid.UUID) {
	r.titles.Delete(id.String())
}

// Resolve walks path root-first and returns the breadcrumb trail, always
// starting with the synthetic root crumb. A segment missing from the tree is
// emitted with its last remembered title and terminates the trail.
func (r *Resolver) Resolve(path []uuid.UUID, lookup Lookup) []Crumb {
	crumbs := make([]Crumb, 0, len(path)+1)
	crumbs = append(crumbs, Crumb{Id: uuid.Nil, Title: r.rootTitle})

	for _, id := range path {
		title, ok := lookup(id)
		if !ok {
			r.logger.Warn("NAV", "Breadcrumb segment missing from tree", map[string]interface{}{
				"board_id": id.String(),
			})
			crumbs = append(crumbs, Crumb{Id: id, Title: r.lastKnownTitle(id)})
			break // Truncate: segments below a vanished board are unreachable anyway
		}

		r.Remember(id, title)
		crumbs = append(crumbs, Crumb{Id: id, Title: title})
	}

	return crumbs
}

func (r *Resolver) lastKnownTitle(id uuid.UUID) string {
	if x, found := r.titles.Get(id.String()); found {
		return x.(string)
	}
	return fallbackTitle
}
