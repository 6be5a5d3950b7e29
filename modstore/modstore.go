package modstore

import (
	"context"
	"time"
)

// MuteRecord is a temporary restriction. It is active only while now < UnmuteAt;
// a stale record must read as absent everywhere.
type MuteRecord struct {
	UserID   int64
	UnmuteAt time.Time
	Reason   string
}

// BanRecord is a permanent restriction, lifted only by an explicit unban.
type BanRecord struct {
	UserID int64
	Reason string
}

type ModStore interface {
	// Ban inserts or overwrites a ban, and drops any mute for the same user
	// (the remaining mute duration is intentionally discarded).
	Ban(ctx context.Context, userID int64, reason string) error
	// Unban reports whether a ban existed.
	Unban(ctx context.Context, userID int64) (bool, error)
	// BanStatus returns nil when the user is not banned.
	BanStatus(ctx context.Context, userID int64) (*BanRecord, error)
	// Mute inserts or overwrites a mute ending at now+d. Overwrite replaces
	// both reason and expiry; durations never accumulate. Callers must check
	// BanStatus first (a ban supersedes mutes).
	Mute(ctx context.Context, userID int64, d time.Duration, reason string) error
	// Unmute reports whether a mute existed (expired records count as absent).
	Unmute(ctx context.Context, userID int64) (bool, error)
	// MuteStatus returns nil when the user is not muted. An expired record is
	// evicted before returning nil.
	MuteStatus(ctx context.Context, userID int64) (*MuteRecord, error)
	// SweepExpired evicts every mute with UnmuteAt <= now and returns the
	// affected user IDs in ascending order.
	SweepExpired(ctx context.Context, now time.Time) ([]int64, error)
}
