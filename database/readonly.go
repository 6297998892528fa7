package database

import (
	"os"
	"strings"
)

const defaultReadOnlyReason = "the database is in read-only maintenance mode"

// ReadOnlyMode reports whether the store is in maintenance mode. The mode is
// driven by a lock file: when the file exists writes are refused and its
// contents are shown to users as the reason. An empty lock path disables the
// feature entirely.
type ReadOnlyMode struct {
	LockPath string
}

func NewReadOnlyMode(lockPath string) *ReadOnlyMode {
	return &ReadOnlyMode{LockPath: lockPath}
}

// IsReadOnly checks the lock file on every call; operators flip maintenance
// mode on and off without restarting the service.
func (m *ReadOnlyMode) IsReadOnly() bool {
	if m.LockPath == "" {
		return false
	}
	_, err := os.Stat(m.LockPath)
	return err == nil
}

// Reason returns the operator-supplied explanation from the lock file, or a
// generic message when the file is empty or unreadable.
func (m *ReadOnlyMode) Reason() string {
	if m.LockPath == "" {
		return ""
	}
	data, err := os.ReadFile(m.LockPath)
	if err != nil {
		return defaultReadOnlyReason
	}
	reason := strings.TrimSpace(string(data))
	if reason == "" {
		return defaultReadOnlyReason
	}
	return reason
}
