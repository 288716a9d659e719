// Package controller orchestrates user actions over the archive
// client. Writes apply optimistically; when the remote store rejects
// one, the controller does a full reload of the affected collection
// instead of reversing the local patch, so local state always ends up
// matching what the remote actually holds.
package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskvault/taskvault/internal/archive"
	"github.com/taskvault/taskvault/internal/epic"
)

// ToastKind classifies a user-visible notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toaster receives user-visible outcome notifications. The CLI
// provides a terminal implementation; tests provide a recorder.
type Toaster interface {
	Toast(message string, kind ToastKind)
}

// ActionState tracks an optimistic action through its lifecycle.
type ActionState string

const (
	StateIdle              ActionState = "idle"
	StateOptimisticApplied ActionState = "optimistic_applied"
	StateRemotePending     ActionState = "remote_pending"
	StateSettledSuccess    ActionState = "settled_success"
	StateSettledFailure    ActionState = "settled_failure"
)

// Client is the slice of the archive client the controller needs.
type Client interface {
	LoadArchivedEpics(ctx context.Context, projectID string) ([]epic.Epic, error)
	ArchiveEpic(ctx context.Context, projectID string, e epic.Epic) error
	RestoreEpic(ctx context.Context, projectID, epicID string) error
	GetArchive(ctx context.Context, archiveID string, statuses []string) (*archive.Archive, error)
}

// Exporter renders a filtered task list into an output format.
type Exporter interface {
	Render(tasks []archive.Task) ([]byte, error)
}

// Controller coordinates optimistic archive actions.
type Controller struct {
	client  Client
	toaster Toaster
	logger  *slog.Logger
	locks   keyedMutex

	// onState, when set, observes action state transitions.
	onState func(action string, state ActionState)
}

// Option configures a Controller.
type Option func(*Controller)

// WithStateObserver registers a hook for action state transitions.
func WithStateObserver(fn func(action string, state ActionState)) Option {
	return func(c *Controller) { c.onState = fn }
}

// New creates a controller. A nil toaster discards notifications.
func New(client Client, toaster Toaster, logger *slog.Logger, opts ...Option) *Controller {
	if toaster == nil {
		toaster = nopToaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{client: client, toaster: toaster, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nopToaster struct{}

func (nopToaster) Toast(string, ToastKind) {}

func (c *Controller) setState(action string, state ActionState) {
	if c.onState != nil {
		c.onState(action, state)
	}
}

// ArchiveEpic archives an epic optimistically. Actions on the same
// epic are serialized; different epics proceed concurrently. On remote
// failure the archived collection is reloaded from the remote store
// and the failure is toasted.
func (c *Controller) ArchiveEpic(ctx context.Context, projectID string, e epic.Epic) error {
	return c.runOptimistic(ctx, "archive", projectID, e.ID, func(ctx context.Context) error {
		return c.client.ArchiveEpic(ctx, projectID, e)
	}, fmt.Sprintf("Epic %q archived", e.ID), fmt.Sprintf("Could not archive epic %q", e.ID))
}

// RestoreEpic restores an archived epic optimistically, with the same
// serialization and failure handling as ArchiveEpic.
func (c *Controller) RestoreEpic(ctx context.Context, projectID, epicID string) error {
	return c.runOptimistic(ctx, "restore", projectID, epicID, func(ctx context.Context) error {
		return c.client.RestoreEpic(ctx, projectID, epicID)
	}, fmt.Sprintf("Epic %q restored", epicID), fmt.Sprintf("Could not restore epic %q", epicID))
}

func (c *Controller) runOptimistic(ctx context.Context, action, projectID, epicID string, call func(context.Context) error, successMsg, failureMsg string) error {
	unlock := c.locks.lock(projectID + "/" + epicID)
	defer unlock()

	c.setState(action, StateIdle)
	c.setState(action, StateOptimisticApplied)
	c.setState(action, StateRemotePending)

	if err := call(ctx); err != nil {
		c.setState(action, StateSettledFailure)
		c.logger.Warn("optimistic action failed, resyncing",
			"action", action, "project", projectID, "epic", epicID, "error", err)
		c.resync(ctx, projectID)
		c.toaster.Toast(failureMsg, ToastError)
		return err
	}

	c.setState(action, StateSettledSuccess)
	c.toaster.Toast(successMsg, ToastSuccess)
	return nil
}

// resync reloads the archived collection so local state converges on
// whatever the remote store actually holds.
func (c *Controller) resync(ctx context.Context, projectID string) {
	if _, err := c.client.LoadArchivedEpics(ctx, projectID); err != nil {
		c.logger.Warn("resync failed", "project", projectID, "error", err)
	}
}

// Import fetches an archive, merges its tasks into current under the
// given mode, and hands the merged list to apply. The action reports
// success only when apply succeeds, so callers can treat a nil return
// as "the merge landed".
func (c *Controller) Import(ctx context.Context, archiveID string, current []archive.Task, mode archive.ImportMode, apply func([]archive.Task) error) error {
	if !archive.IsValidImportMode(mode) {
		err := fmt.Errorf("invalid import mode: %q", mode)
		c.toaster.Toast(err.Error(), ToastError)
		return err
	}

	a, err := c.client.GetArchive(ctx, archiveID, nil)
	if err != nil {
		c.toaster.Toast(fmt.Sprintf("Could not fetch archive %q", archiveID), ToastError)
		return err
	}

	merged, err := archive.MergeImport(current, a.Tasks, mode)
	if err != nil {
		c.toaster.Toast(err.Error(), ToastError)
		return err
	}

	if err := apply(merged); err != nil {
		c.toaster.Toast(fmt.Sprintf("Import of archive %q failed", archiveID), ToastError)
		return err
	}

	c.toaster.Toast(fmt.Sprintf("Imported %d tasks from archive %q", len(a.Tasks), archiveID), ToastSuccess)
	return nil
}

// Export filters tasks by status and delegates rendering to the
// exporter. An empty status list exports nothing, matching the
// filter's empty-selection semantics.
func (c *Controller) Export(tasks []archive.Task, statuses []string, exporter Exporter) ([]byte, error) {
	filtered := archive.FilterByStatus(tasks, statuses)
	data, err := exporter.Render(filtered)
	if err != nil {
		c.toaster.Toast("Export failed", ToastError)
		return nil, err
	}
	c.toaster.Toast(fmt.Sprintf("Exported %d tasks", len(filtered)), ToastSuccess)
	return data, nil
}
