// Package cases holds the minimal view of the immigration-case record the
// lifecycle needs: completion status for archival and the assigned officer
// for notifications. The full case entity lives with the CRUD collaborator.
package cases

import "time"

const StatusCompleted = "completed"

// Case is the slim case record.
type Case struct {
	ID              string
	Status          string
	ResidencyRegion string
	AssignedOfficer string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
