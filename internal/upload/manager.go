// Package upload implements chunked file uploads and the attachment list of
// the message composer.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcostalima/trill/internal/api"
	"go.uber.org/zap"
)

// ChunkSize is the fixed chunk size for uploads.
const ChunkSize = 1 << 20

// maxRetries is how many times a failed chunk is retried before the whole
// upload fails.
const maxRetries = 1

// ErrEmptyFile is returned when an upload is attempted with no data.
var ErrEmptyFile = errors.New("upload: file is empty")

// chunkClient is the slice of the REST client the manager needs.
type chunkClient interface {
	UploadChunk(ctx context.Context, fileID, filename string, chunkIndex, totalChunks int, chunk []byte) (*api.ChunkResponse, error)
	DeleteUpload(ctx context.Context, fileID string) error
}

// Progress reports upload progress as a fraction in (0, 1] plus a status
// string, "uploading" until the final chunk is acknowledged and "completed"
// after.
type Progress struct {
	Fraction float64
	Status   string
}

// Manager uploads files in fixed-size chunks, sequentially, threading the
// server-assigned file id from the first chunk through the rest.
type Manager struct {
	api       chunkClient
	logger    *zap.Logger
	retryWait time.Duration
}

// NewManager creates an upload manager.
func NewManager(client chunkClient, logger *zap.Logger) *Manager {
	return &Manager{
		api:       client,
		logger:    logger,
		retryWait: time.Second,
	}
}

// SetRetryWait overrides the base wait between chunk retries.
func (m *Manager) SetRetryWait(d time.Duration) {
	m.retryWait = d
}

// Upload sends data in ChunkSize pieces and returns the server-assigned file
// id. onProgress, if non-nil, is called twice per chunk: mid-chunk while the
// request is on the wire and again once the chunk is acknowledged.
func (m *Manager) Upload(ctx context.Context, filename string, data []byte, onProgress func(Progress)) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	total := (len(data) + ChunkSize - 1) / ChunkSize
	report := func(fraction float64, status string) {
		if onProgress != nil {
			onProgress(Progress{Fraction: fraction, Status: status})
		}
	}

	fileID := ""
	for i := 0; i < total; i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > len(data) {
			end = len(data)
		}

		report((float64(i)+0.5)/float64(total), "uploading")

		resp, err := m.sendChunk(ctx, fileID, filename, i, total, data[start:end])
		if err != nil {
			return "", fmt.Errorf("upload %s chunk %d/%d: %w", filename, i+1, total, err)
		}
		if fileID == "" {
			fileID = resp.FileID
		}

		status := "uploading"
		if i == total-1 {
			status = "completed"
		}
		report(float64(i+1)/float64(total), status)
	}

	m.logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("file_id", fileID),
		zap.Int("chunks", total))
	return fileID, nil
}

func (m *Manager) sendChunk(ctx context.Context, fileID, filename string, index, total int, chunk []byte) (*api.ChunkResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := m.retryWait * time.Duration(attempt)
			m.logger.Warn("retrying chunk",
				zap.String("filename", filename),
				zap.Int("chunk", index),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := m.api.UploadChunk(ctx, fileID, filename, index, total, chunk)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Delete removes an uploaded file from the backend.
func (m *Manager) Delete(ctx context.Context, fileID string) error {
	return m.api.DeleteUpload(ctx, fileID)
}
