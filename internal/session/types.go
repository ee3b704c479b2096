package session

import "time"

// MaxDrives is the number of DOS drive letters, A through Z
const MaxDrives = 26

// Record status values
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// VirtualDrive maps a DOS drive letter onto a host directory. The session only
// holds the mapping; the backing storage belongs to the host.
type VirtualDrive struct {
	Index     uint8    `json:"index"`               // 0 (A:) to 25 (Z:)
	Source    string   `json:"source"`              // Host backing root
	ReadOnly  bool     `json:"read_only"`           // Deny every write
	Protected []string `json:"protected,omitempty"` // Glob patterns relative to Source that may not be written
}

// Letter returns the DOS drive letter for the drive, e.g. "C"
func (d VirtualDrive) Letter() string {
	return DriveLetter(d.Index)
}

// DriveLetter converts a drive index into its DOS letter
func DriveLetter(index uint8) string {
	if index >= MaxDrives {
		return "?"
	}
	return string(rune('A' + index))
}

// ExecutedProgram is a program or batch file the DOS shell ran
type ExecutedProgram struct {
	DOSPath  string    `json:"dos_path"`
	HostPath string    `json:"host_path,omitempty"`
	Drive    string    `json:"drive"`
	At       time.Time `json:"at"`
}

// Record is the persisted summary of one emulation session
type Record struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"` // "running", "stopped"
	Drives     []VirtualDrive    `json:"drives"`
	Programs   []ExecutedProgram `json:"programs,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	StoppedAt  *time.Time        `json:"stopped_at,omitempty"`
	ExitReason string            `json:"exit_reason,omitempty"` // "normal" | "host" | "cancelled"
}
