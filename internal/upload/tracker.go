package upload

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/wire"
	"go.uber.org/zap"
)

// Attachment states. Failed uploads never reach the list; they are dropped
// as soon as the failure is known.
const (
	StateUploading = "uploading"
	StateUploaded  = "uploaded"
	StateDeleting  = "deleting"
)

// Attachment is one file in the composer's attachment list.
type Attachment struct {
	ClientID string
	Filename string
	FileID   string
	State    string
	Progress float64

	added time.Time
}

// Tracker owns the composer's attachment list. Each added file gets a client
// id immediately so the UI can show it while the upload is still running.
type Tracker struct {
	manager *Manager
	bus     *bus.Bus
	logger  *zap.Logger

	mu    sync.Mutex
	items map[string]*Attachment
}

// NewTracker creates an attachment tracker.
func NewTracker(manager *Manager, b *bus.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{
		manager: manager,
		bus:     b,
		logger:  logger,
		items:   make(map[string]*Attachment),
	}
}

// Attach reads a file and uploads it, tracking progress under a fresh client
// id. It blocks until the upload resolves; callers run it in a goroutine.
func (t *Tracker) Attach(ctx context.Context, path string) (string, error) {
	clientID := uuid.NewString()
	filename := filepath.Base(path)

	t.mu.Lock()
	t.items[clientID] = &Attachment{
		ClientID: clientID,
		Filename: filename,
		State:    StateUploading,
		added:    time.Now(),
	}
	t.mu.Unlock()

	data, err := os.ReadFile(path)
	if err == nil && len(data) == 0 {
		err = ErrEmptyFile
	}
	if err != nil {
		t.fail(clientID, filename, err)
		return clientID, err
	}

	fileID, err := t.manager.Upload(ctx, filename, data, func(p Progress) {
		t.mu.Lock()
		if item, ok := t.items[clientID]; ok {
			item.Progress = p.Fraction
		}
		t.mu.Unlock()
		t.bus.Publish(bus.Event{
			Kind:      bus.KindUploadProgress,
			Timestamp: time.Now(),
			Payload:   bus.UploadEvent{FileID: clientID, Filename: filename, Progress: p.Fraction},
		})
	})
	if err != nil {
		t.fail(clientID, filename, err)
		return clientID, err
	}

	t.mu.Lock()
	if item, ok := t.items[clientID]; ok {
		item.FileID = fileID
		item.State = StateUploaded
		item.Progress = 1
	}
	t.mu.Unlock()
	return clientID, nil
}

// fail drops the attachment and notifies the UI. A failed file does not
// linger in the pending list; the toast is the only trace.
func (t *Tracker) fail(clientID, filename string, err error) {
	t.mu.Lock()
	delete(t.items, clientID)
	t.mu.Unlock()
	t.logger.Error("upload failed", zap.Error(err), zap.String("filename", filename))
	t.bus.Publish(bus.Event{
		Kind:      bus.KindUploadFailed,
		Timestamp: time.Now(),
		Payload:   bus.UploadEvent{FileID: clientID, Filename: filename, Err: err.Error()},
	})
}

// Remove drops an attachment. Files that reached the backend are deleted
// there first; anything else is only dropped locally.
func (t *Tracker) Remove(ctx context.Context, clientID string) error {
	t.mu.Lock()
	item, ok := t.items[clientID]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	uploaded := item.State == StateUploaded
	fileID := item.FileID
	if uploaded {
		item.State = StateDeleting
	}
	t.mu.Unlock()

	if uploaded {
		if err := t.manager.Delete(ctx, fileID); err != nil {
			t.mu.Lock()
			if item, ok := t.items[clientID]; ok {
				item.State = StateUploaded
			}
			t.mu.Unlock()
			return err
		}
	}

	t.mu.Lock()
	delete(t.items, clientID)
	t.mu.Unlock()
	return nil
}

// List returns a snapshot of all attachments in insertion order.
func (t *Tracker) List() []Attachment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Attachment, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].added.Before(out[j].added) })
	return out
}

// UploadedRefs returns file references for every fully uploaded attachment,
// ready to attach to an outgoing message.
func (t *Tracker) UploadedRefs() []wire.FileRef {
	var refs []wire.FileRef
	for _, item := range t.List() {
		if item.State == StateUploaded {
			refs = append(refs, wire.FileRef{ID: item.FileID, Filename: item.Filename})
		}
	}
	return refs
}

// Clear forgets all attachments. Called after a message that carries them is
// sent; the files themselves stay on the backend.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[string]*Attachment)
}
