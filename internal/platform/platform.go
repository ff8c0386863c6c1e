// Package platform defines the capability contract of the remote
// recording-scheduling platform. The sync engine depends only on these
// interfaces; transport specifics live in the rest subpackage.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/domain"
)

// ErrRecorderNotFound is returned by RecorderAPI.GetByName when no recorder
// carries the requested name.
var ErrRecorderNotFound = errors.New("platform: recorder not found")

// ScheduleRequest carries everything a schedule call needs.
type ScheduleRequest struct {
	Title       string
	FolderID    uuid.UUID
	Webcast     bool
	StartUTC    time.Time
	EndUTC      time.Time
	RecorderIDs []uuid.UUID
}

// SessionAPI covers the platform's session resource.
type SessionAPI interface {
	// ListScheduled returns every scheduled session in the window. It pages
	// internally; the returned slice is the complete window.
	ListScheduled(ctx context.Context, fromUTC, toUTC time.Time) ([]domain.ExistingSession, error)

	// Schedule creates a recording. Scheduling conflicts are reported in the
	// result, not as an error.
	Schedule(ctx context.Context, req ScheduleRequest) (domain.ScheduleResult, error)

	SetIdentityTag(ctx context.Context, sessionID uuid.UUID, identity string) error
	SetOwner(ctx context.Context, sessionID uuid.UUID, owner string) error
	SetAvailabilityStart(ctx context.Context, sessionID uuid.UUID, startUTC time.Time) error

	Delete(ctx context.Context, sessionIDs []uuid.UUID) error
}

// FolderAPI covers the platform's folder resource.
type FolderAPI interface {
	// ListAll returns the complete folder listing, paging internally.
	ListAll(ctx context.Context) ([]domain.Folder, error)
}

// RecorderAPI covers the platform's recorder resource.
type RecorderAPI interface {
	GetByName(ctx context.Context, name string) (domain.Recorder, error)
}

// Client groups the platform APIs by resource.
type Client interface {
	Sessions() SessionAPI
	Folders() FolderAPI
	Recorders() RecorderAPI
}

// transienter is implemented by errors whose fault signature suggests a
// transient server-side failure worth retrying.
type transienter interface {
	Transient() bool
}

// IsTransient reports whether err carries a likely-transient fault signature.
// Only such faults are retried; folder-not-found, validation failures and
// conflict outcomes never are.
func IsTransient(err error) bool {
	var t transienter
	return errors.As(err, &t) && t.Transient()
}
