// Package api is a small HTTP client for the signing server's REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

// ErrNotLoggedIn is returned by calls that need a session before Login
// succeeded.
var ErrNotLoggedIn = errors.New("not logged in")

// Error is a non-2xx response from the server.
type Error struct {
	Status    int
	Message   string
	Field     string
	RequestID string
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (status %d, request %s)", msg, e.Status, e.RequestID)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetToken(token string) { c.token = token }
func (c *Client) Token() string         { return c.token }

func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	var u User
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", credentials{Email: email, Password: password}, &u, false)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and keeps the session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", credentials{Email: email, Password: password}, &resp, false); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// Upload streams r to the server as the multipart field "pdf".
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename=%q`, filepath.Base(name)))
	hdr.Set("Content-Type", common.PDFMimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, "/api/docs/upload", mw.FormDataContentType(), &buf, &doc, true); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/docs", nil, &docs, true); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/docs/"+url.PathEscape(id), nil, &doc, true); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/docs/"+url.PathEscape(id), nil, nil, true)
}

func (c *Client) PublicLink(ctx context.Context, id string) (*PublicLink, error) {
	var link PublicLink
	if err := c.doJSON(ctx, http.MethodPost, "/api/docs/"+url.PathEscape(id)+"/public-link", nil, &link, true); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) CreateSignature(ctx context.Context, req SignatureRequest) (*Signature, error) {
	var sig Signature
	if err := c.doJSON(ctx, http.MethodPost, "/api/signatures", req, &sig, true); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (c *Client) ListSignatures(ctx context.Context, documentID string) ([]Signature, error) {
	var sigs []Signature
	if err := c.doJSON(ctx, http.MethodGet, "/api/signatures/"+url.PathEscape(documentID), nil, &sigs, true); err != nil {
		return nil, err
	}
	return sigs, nil
}

func (c *Client) DeleteSignature(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/signatures/"+url.PathEscape(id), nil, nil, true)
}

func (c *Client) Finalize(ctx context.Context, documentID string) (*FinalizeResult, error) {
	var res FinalizeResult
	body := map[string]string{"documentId": documentID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/signatures/finalize", body, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// Download fetches a served artifact, e.g. the URL returned by Finalize,
// and writes it to w.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if strings.HasPrefix(rawURL, "/") {
		rawURL = c.baseURL + rawURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out, auth)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any, auth bool) error {
	if auth && c.token == "" {
		return ErrNotLoggedIn
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set(common.AuthorizationHeader, "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error     string `json:"error"`
		Field     string `json:"field"`
		RequestID string `json:"request_id"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	if body.RequestID == "" {
		body.RequestID = resp.Header.Get(common.RequestIDHeader)
	}
	return &Error{Status: resp.StatusCode, Message: body.Error, Field: body.Field, RequestID: body.RequestID}
}
