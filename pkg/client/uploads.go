package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// Upload mirrors the server's upload metadata.
type Upload struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Category    string    `json:"category"`
	Hash        string    `json:"hash"`
	Description string    `json:"description,omitempty"`
	PatientID   string    `json:"patient_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

func (u *Upload) RecordID() string { return u.ID }

type UploadRequest struct {
	FileName string
	// ContentType may be empty; the server then infers it from the name.
	ContentType string
	Category    string
	Description string
	PatientID   string
	Content     io.Reader
}

// Uploads is the client for /uploads.
type Uploads struct {
	c   *Client
	res *Resource[*Upload]
}

func (c *Client) Uploads() *Uploads {
	return &Uploads{c: c, res: NewResource[*Upload](c, "uploads")}
}

// Upload sends the file as multipart/form-data. The body is buffered so a
// retried request can be replayed.
func (u *Uploads) Upload(ctx context.Context, req UploadRequest) (*Upload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, val := range map[string]string{
		"category":    req.Category,
		"description": req.Description,
		"patient_id":  req.PatientID,
	} {
		if val == "" {
			continue
		}
		if err := w.WriteField(name, val); err != nil {
			return nil, err
		}
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	ct := req.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	resp, err := u.c.send(ctx, http.MethodPost, u.res.collectionURL(), buf.Bytes(), w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out Upload
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Uploads) List(ctx context.Context, filters Filters, page Page) (*PageResult[*Upload], error) {
	return u.res.ListPage(ctx, filters, page)
}

func (u *Uploads) Get(ctx context.Context, id string) (*Upload, error) {
	return u.res.Get(ctx, id)
}

func (u *Uploads) Delete(ctx context.Context, id string) error {
	return u.res.Remove(ctx, id)
}

// Download streams the stored content. The caller closes the reader.
func (u *Uploads) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := u.c.send(ctx, http.MethodGet, u.res.itemURL(id)+"/content", nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeResponse(resp, nil)
	}
	return resp.Body, nil
}

