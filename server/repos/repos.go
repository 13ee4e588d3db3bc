package repos

import "gorm.io/gorm"

// Registry bundles one repository per entity around a shared
// database handle, so the composition root wires storage exactly once.
type Registry struct {
	Profiles *ProfilesRepo
	Contacts *ContactsRepo
	Targets  *TargetsRepo
	Nudges   *NudgesRepo
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		Profiles: NewProfilesRepo(db),
		Contacts: NewContactsRepo(db),
		Targets:  NewTargetsRepo(db),
		Nudges:   NewNudgesRepo(db),
	}
}
