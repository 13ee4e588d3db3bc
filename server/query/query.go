// Package query binds the entity repositories to the process-wide cache.
// Each binding declares the cache keys its reads live under and the
// invalidation rules its mutations trigger, so two callers asking for the
// same logical resource share one fetch and one cached result. Cache
// changes happen only after the database confirms a mutation; nothing here
// is optimistic.
package query

import (
	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/repos"
)

const (
	contactsDomain = "contacts"
	targetsDomain  = "nudge-targets"
	nudgesDomain   = "nudges"
	profilesDomain = "profiles"
)

// Bindings is the cache-aware facade over the repositories;
// the HTTP layer reads and mutates exclusively through it.
type Bindings struct {
	Contacts *ContactQueries
	Targets  *TargetQueries
	Nudges   *NudgeQueries
	Profiles *ProfileQueries
}

func NewBindings(registry *repos.Registry, store *cache.Store) *Bindings {
	return &Bindings{
		Contacts: &ContactQueries{repo: registry.Contacts, store: store},
		Targets:  &TargetQueries{repo: registry.Targets, store: store},
		Nudges:   &NudgeQueries{repo: registry.Nudges, store: store},
		Profiles: &ProfileQueries{repo: registry.Profiles, store: store},
	}
}
