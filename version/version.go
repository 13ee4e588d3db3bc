package version

// Version is the current release of nudged.
// Bumped manually as part of the release checklist.
const Version = "0.3.0"
