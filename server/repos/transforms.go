package repos

import "github.com/nudgelabs/nudged/server/models"

// The database hands relations back as nested rows. Each query shape gets its
// own projection function here, so the flattening the API promises (contact
// arrays, derived is_group, viewer upvote stamps) happens in exactly one place.

// TargetWithContacts is the read shape for nudge targets: the join rows are
// flattened into a contact slice and is_group is derived, never stored.
type TargetWithContacts struct {
	models.NudgeTarget
	Contacts []models.Contact `json:"contacts"`
	IsGroup  bool             `json:"is_group"`
}

// ProfileName is the slimmed-down creator join attached to nudges.
type ProfileName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NudgeWithDetails is the read shape for nudges: creator name flattened from
// the profile join, plus the per-viewer upvote stamp.
type NudgeWithDetails struct {
	models.Nudge
	UserHasUpvoted bool         `json:"user_has_upvoted"`
	CreatorProfile *ProfileName `json:"creator_profile"`
}

func projectTarget(target models.NudgeTarget) TargetWithContacts {
	contacts := make([]models.Contact, 0, len(target.TargetContacts))
	for _, tc := range target.TargetContacts {
		if tc.Contact != nil {
			contacts = append(contacts, *tc.Contact)
		}
	}

	projected := TargetWithContacts{
		NudgeTarget: target,
		Contacts:    contacts,
		IsGroup:     len(target.TargetContacts) > 1,
	}
	projected.TargetContacts = nil

	return projected
}

func projectTargets(targets []models.NudgeTarget) []TargetWithContacts {
	projected := make([]TargetWithContacts, 0, len(targets))
	for _, target := range targets {
		projected = append(projected, projectTarget(target))
	}

	return projected
}

func projectNudge(nudge models.Nudge, upvotedByViewer bool) NudgeWithDetails {
	var creator *ProfileName
	if nudge.CreatorProfile != nil {
		creator = &ProfileName{
			FirstName: nudge.CreatorProfile.FirstName,
			LastName:  nudge.CreatorProfile.LastName,
		}
	}

	projected := NudgeWithDetails{
		Nudge:          nudge,
		UserHasUpvoted: upvotedByViewer,
		CreatorProfile: creator,
	}
	projected.Nudge.CreatorProfile = nil

	return projected
}

func projectNudges(nudges []models.Nudge, upvotedIDs map[uint]bool) []NudgeWithDetails {
	projected := make([]NudgeWithDetails, 0, len(nudges))
	for _, nudge := range nudges {
		projected = append(projected, projectNudge(nudge, upvotedIDs[nudge.ID]))
	}

	return projected
}
