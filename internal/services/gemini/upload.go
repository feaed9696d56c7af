package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"lettercast/internal/services"
)

// UploadFile pushes one local file to the service's file store and returns
// its reference. Files the service already holds (matched by SHA-256) are
// reused instead of re-uploaded. The call makes a single attempt; retry
// policy belongs to the caller.
func (c *Client) UploadFile(ctx context.Context, stage, path, mimeType string) (*FileRef, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage, "upload file", "api key required", nil)
	}

	digest, size, err := hashFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage, "upload file", path, err)
	}

	if ref, ok := c.lookupKnownFile(ctx, stage, digest); ok {
		return ref, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage, "upload file", path, err)
	}
	defer f.Close()

	endpoint := fmt.Sprintf("%s/v1beta/files?key=%s", c.cfg.UploadBaseURL, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage, "upload file", "new request", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.ContentLength = size

	body, err := c.do(req)
	if err != nil {
		return nil, wrapTransportError(stage, "upload file", err)
	}

	var decoded struct {
		File remoteFile `json:"file"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrInvalidResponse, stage, "upload file", "decode response", err)
	}
	if decoded.File.URI == "" {
		return nil, services.Wrap(services.ErrInvalidResponse, stage, "upload file", "response missing file uri", nil)
	}

	ref := decoded.File.toRef()
	if ref.SHA256 == "" {
		ref.SHA256 = digest
	}
	c.rememberFile(ref)
	return &ref, nil
}

type remoteFile struct {
	Name       string `json:"name"`
	URI        string `json:"uri"`
	MIMEType   string `json:"mimeType"`
	SHA256Hash string `json:"sha256Hash"`
	State      string `json:"state"`
}

func (r remoteFile) toRef() FileRef {
	return FileRef{
		Name:     r.Name,
		URI:      r.URI,
		MIMEType: r.MIMEType,
		SHA256:   r.SHA256Hash,
		State:    r.State,
	}
}

// ListFiles enumerates files currently held by the service.
func (c *Client) ListFiles(ctx context.Context, stage string) ([]FileRef, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage, "list files", "api key required", nil)
	}

	var refs []FileRef
	pageToken := ""
	for {
		endpoint := fmt.Sprintf("%s/v1beta/files?key=%s&pageSize=100", c.cfg.BaseURL, url.QueryEscape(c.cfg.APIKey))
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, stage, "list files", "new request", err)
		}
		body, err := c.do(req)
		if err != nil {
			return nil, wrapTransportError(stage, "list files", err)
		}

		var decoded struct {
			Files         []remoteFile `json:"files"`
			NextPageToken string       `json:"nextPageToken"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, services.Wrap(services.ErrInvalidResponse, stage, "list files", "decode response", err)
		}
		for _, f := range decoded.Files {
			refs = append(refs, f.toRef())
		}
		if decoded.NextPageToken == "" {
			return refs, nil
		}
		pageToken = decoded.NextPageToken
	}
}

// lookupKnownFile consults the local digest cache, lazily seeding it from the
// service's file listing on first use. Listing failures degrade to a plain
// upload rather than failing the run.
func (c *Client) lookupKnownFile(ctx context.Context, stage, digest string) (*FileRef, bool) {
	c.mu.Lock()
	if !c.filesListed {
		c.mu.Unlock()
		refs, err := c.ListFiles(ctx, stage)
		c.mu.Lock()
		if err == nil {
			for _, ref := range refs {
				if ref.SHA256 != "" {
					c.knownFiles[ref.SHA256] = ref
				}
			}
		}
		c.filesListed = true
	}
	ref, ok := c.knownFiles[digest]
	c.mu.Unlock()
	if !ok || (ref.State != "" && ref.State != "ACTIVE") {
		return nil, false
	}
	return &ref, true
}

func (c *Client) rememberFile(ref FileRef) {
	if ref.SHA256 == "" {
		return
	}
	c.mu.Lock()
	c.knownFiles[ref.SHA256] = ref
	c.mu.Unlock()
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), size, nil
}
