package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// ChunkResponse is the backend's acknowledgement of one uploaded chunk.
type ChunkResponse struct {
	FileID      string `json:"file_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	IsComplete  bool   `json:"is_complete"`
	Message     string `json:"message"`
}

// UploadChunk sends one chunk of a file as multipart form data. fileID must
// be empty for the first chunk; the backend assigns one and every later chunk
// must carry it.
func (c *Client) UploadChunk(ctx context.Context, fileID, filename string, chunkIndex, totalChunks int, chunk []byte) (*ChunkResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("chunk", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(chunk); err != nil {
		return nil, err
	}
	if err := w.WriteField("filename", filename); err != nil {
		return nil, err
	}
	if err := w.WriteField("chunk_index", fmt.Sprint(chunkIndex)); err != nil {
		return nil, err
	}
	if err := w.WriteField("total_chunks", fmt.Sprint(totalChunks)); err != nil {
		return nil, err
	}
	if fileID != "" {
		if err := w.WriteField("file_id", fileID); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/chunks", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp ChunkResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteUpload removes an uploaded file from the backend.
func (c *Client) DeleteUpload(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/upload/"+url.PathEscape(fileID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
