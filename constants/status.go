package constants

// ItemStatus is the canonical status for rows in stage_table and status_table.
type ItemStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ItemStatus = "PENDING"     // waiting to be claimed
	StatusInProgress ItemStatus = "IN_PROGRESS" // claimed by a worker
	StatusSuccess    ItemStatus = "SUCCESS"     // terminal success
	StatusFailure    ItemStatus = "FAILURE"     // terminal failure
)

// MaxMessageLength caps the message column in status_table. Longer failure
// messages are truncated to exactly this many bytes before the upsert.
const MaxMessageLength = 500
