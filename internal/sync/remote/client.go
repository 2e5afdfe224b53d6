// Package remote is the typed client for the remote sync and media endpoints.
// It encodes requests as JSON and maps remote statuses onto errors that
// sync.Classify understands.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/transport"
)

const maxErrorBody = 512

// Client performs protocol calls for one session
type Client struct {
	exchanger transport.Exchanger
	key       string
	hostNum   int
}

// New creates a client using the session key and host of sess
func New(exchanger transport.Exchanger, sess sync.Session) *Client {
	return &Client{exchanger: exchanger, key: sess.Key, hostNum: sess.Route.HostNum}
}

// NewAnonymous creates a client for calls made before a session key exists
func NewAnonymous(exchanger transport.Exchanger, route sync.HostRoute) *Client {
	return &Client{exchanger: exchanger, hostNum: route.HostNum}
}

// HostKey exchanges credentials for a session key
func (c *Client) HostKey(ctx context.Context, username, password string) (HostKeyResponse, error) {
	var out HostKeyResponse
	err := c.call(ctx, transport.ServiceSync, MethodHostKey, HostKeyRequest{Username: username, Password: password}, &out)
	return out, err
}

// Meta fetches the remote collection bookkeeping
func (c *Client) Meta(ctx context.Context, clientVersion string) (MetaResponse, error) {
	var out MetaResponse
	err := c.call(ctx, transport.ServiceSync, MethodMeta, MetaRequest{Version: SyncVersion, ClientVersion: clientVersion}, &out)
	return out, err
}

// Start opens a sync, sending local removals and receiving remote ones
func (c *Client) Start(ctx context.Context, req StartRequest) (StartResponse, error) {
	var out StartResponse
	err := c.call(ctx, transport.ServiceSync, MethodStart, req, &out)
	return out, err
}

// ApplyChanges exchanges small objects
func (c *Client) ApplyChanges(ctx context.Context, req ChangesRequest) (ChangesResponse, error) {
	var out ChangesResponse
	err := c.call(ctx, transport.ServiceSync, MethodApplyChanges, req, &out)
	return out, err
}

// Chunk fetches the next batch of remote large objects
func (c *Client) Chunk(ctx context.Context) (Chunk, error) {
	var out Chunk
	err := c.call(ctx, transport.ServiceSync, MethodChunk, struct{}{}, &out)
	return out, err
}

// ApplyChunk sends one batch of local large objects
func (c *Client) ApplyChunk(ctx context.Context, chunk Chunk) error {
	return c.call(ctx, transport.ServiceSync, MethodApplyChunk, ApplyChunkRequest{Chunk: chunk}, nil)
}

// SanityCheck compares local and remote row counts
func (c *Client) SanityCheck(ctx context.Context, counts SanityRequest) (SanityResponse, error) {
	var out SanityResponse
	err := c.call(ctx, transport.ServiceSync, MethodSanityCheck, counts, &out)
	return out, err
}

// Finish commits the sync on the remote
func (c *Client) Finish(ctx context.Context) (FinishResponse, error) {
	var out FinishResponse
	err := c.call(ctx, transport.ServiceSync, MethodFinish, struct{}{}, &out)
	return out, err
}

// Abort discards the remote side of an unfinished sync
func (c *Client) Abort(ctx context.Context) error {
	return c.call(ctx, transport.ServiceSync, MethodAbort, struct{}{}, nil)
}

// Upload sends a whole collection file and returns the remote status text
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	resp, err := c.exchange(ctx, transport.ServiceSync, MethodUpload, data, "application/octet-stream")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp.Body)), nil
}

// Download fetches a whole collection file
func (c *Client) Download(ctx context.Context) ([]byte, error) {
	resp, err := c.exchange(ctx, transport.ServiceSync, MethodDownload, []byte("{}"), "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// MediaBegin opens a media sync
func (c *Client) MediaBegin(ctx context.Context) (MediaBeginResponse, error) {
	var out MediaBeginResponse
	err := c.call(ctx, transport.ServiceMedia, MethodMediaBegin, struct{}{}, &out)
	return out, err
}

// MediaChanges lists remote media changes after lastUSN
func (c *Client) MediaChanges(ctx context.Context, lastUSN int) (MediaChangesResponse, error) {
	var out MediaChangesResponse
	err := c.call(ctx, transport.ServiceMedia, MethodMediaChanges, MediaChangesRequest{LastUSN: lastUSN}, &out)
	return out, err
}

// DownloadFiles fetches the named files as a zip archive
func (c *Client) DownloadFiles(ctx context.Context, files []string) ([]byte, error) {
	payload, err := json.Marshal(DownloadFilesRequest{Files: files})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", MethodDownloadFiles, err)
	}
	resp, err := c.exchange(ctx, transport.ServiceMedia, MethodDownloadFiles, payload, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// UploadChanges sends a zip archive of local media changes
func (c *Client) UploadChanges(ctx context.Context, archive []byte) (UploadChangesResponse, error) {
	var out UploadChangesResponse
	resp, err := c.exchange(ctx, transport.ServiceMedia, MethodUploadChanges, archive, "application/zip")
	if err != nil {
		return out, err
	}
	if err := decode(MethodUploadChanges, resp.Body, &out); err != nil {
		return out, err
	}
	return out, nil
}

// MediaSanity compares the local and remote media counts
func (c *Client) MediaSanity(ctx context.Context, local int) (MediaSanityResponse, error) {
	var out MediaSanityResponse
	err := c.call(ctx, transport.ServiceMedia, MethodMediaSanity, MediaSanityRequest{Local: local}, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, svc transport.Service, method string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	resp, err := c.exchange(ctx, svc, method, payload, "")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(method, resp.Body, out)
}

func (c *Client) exchange(
	ctx context.Context, svc transport.Service, method string, payload []byte, contentType string,
) (*transport.Response, error) {
	ep := transport.Endpoint{Service: svc, Method: method, HostNum: c.hostNum}
	resp, err := c.exchanger.Exchange(ctx, ep, transport.Request{
		Payload:     payload,
		SessionKey:  c.key,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, StatusError(resp)
	}
	return resp, nil
}

// StatusError converts a non-success response into an error
func StatusError(resp *transport.Response) error {
	msg := string(bytes.TrimSpace(resp.Body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	switch resp.StatusCode {
	case http.StatusForbidden:
		return sync.Rejected(resp.StatusCode, sync.ReasonBadAuth, msg)
	case http.StatusUpgradeRequired:
		return sync.Rejected(resp.StatusCode, sync.ReasonUpgradeRequired, msg)
	default:
		if msg == "" {
			msg = resp.Status
		}
		return transport.NewHTTPError(resp.StatusCode, resp.URL, msg)
	}
}

func decode(method string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}
