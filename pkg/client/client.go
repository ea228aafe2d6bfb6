// Package client is the thin request layer in front of the recording API.
// Every call fetches the bearer token from the session provider immediately
// before the request goes out; nothing in here caches a token.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	errs "VoiceBank/pkg/errors"
	"VoiceBank/pkg/session"
)

// Recording 服务端录音记录
type Recording struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScriptText  string    `json:"script_text"`
	AudioURL    string    `json:"audio_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile 用户资料
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsComplete reports whether the profile needs the "complete your profile"
// flow. Only the full name decides this.
func (p *Profile) IsComplete() bool {
	return p != nil && strings.TrimSpace(p.FullName) != ""
}

// CreateOutcome tags the result of CreateProfile so callers can tell an
// actual creation from an idempotent replay.
type CreateOutcome int

const (
	Created CreateOutcome = iota
	AlreadyExists
)

func (o CreateOutcome) String() string {
	if o == AlreadyExists {
		return "already_exists"
	}
	return "created"
}

// UploadRequest carries the metadata form fields accompanying the audio.
type UploadRequest struct {
	Title       string
	Description string
	ScriptText  string
}

// AudioSource is the finished capture blob. *capture.Blob satisfies it.
type AudioSource interface {
	Bytes() []byte
	ContentType() string
	HasAudio() bool
}

type Option func(*Client)

// WithHTTPClient substitutes the underlying resty client, for tests.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) { c.rc = rc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rc.SetTimeout(d) }
}

// Client issues authorized calls against the recording API.
type Client struct {
	rc     *resty.Client
	tokens session.TokenProvider
}

func New(baseURL string, tokens session.TokenProvider, opts ...Option) *Client {
	c := &Client{
		rc: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(30 * time.Second),
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request builds an authorized request. An empty token fails locally before
// any bytes reach the network.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.CurrentToken(ctx)
	if err != nil {
		return nil, errs.WrapCode(errs.CodeUnauthorized, err, "fetch session token")
	}
	if token == "" {
		return nil, errs.WithCode(errs.CodeUnauthorized, "no active session")
	}
	return c.rc.R().SetContext(ctx).SetAuthToken(token), nil
}

// ListByOwner returns the caller's recordings, newest first.
func (c *Client) ListByOwner(ctx context.Context, userID string) ([]Recording, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var recordings []Recording
	resp, err := req.SetResult(&recordings).Get("/recordings/user/" + userID)
	if err != nil {
		return nil, errs.WrapCode(errs.CodeNetwork, err, "list recordings")
	}
	if resp.IsError() {
		return nil, statusError(resp, "list recordings")
	}
	return recordings, nil
}

// Get fetches a single recording by id.
func (c *Client) Get(ctx context.Context, id string) (*Recording, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var rec Recording
	resp, err := req.SetResult(&rec).Get("/recordings/" + id)
	if err != nil {
		return nil, errs.WrapCode(errs.CodeNetwork, err, "fetch recording")
	}
	if resp.IsError() {
		return nil, statusError(resp, "fetch recording")
	}
	return &rec, nil
}

// Upload submits the finished blob with its form metadata. Required fields
// are validated here first; a request with an empty title, empty script text
// or no audio never leaves the client.
func (c *Client) Upload(ctx context.Context, form UploadRequest, audio AudioSource) (*Recording, error) {
	if strings.TrimSpace(form.Title) == "" {
		return nil, errs.WithCode(errs.CodeValidation, "title is required")
	}
	if strings.TrimSpace(form.ScriptText) == "" {
		return nil, errs.WithCode(errs.CodeValidation, "script text is required")
	}
	if audio == nil || !audio.HasAudio() {
		return nil, errs.WithCode(errs.CodeValidation, "recording has no audio")
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var rec Recording
	resp, err := req.
		SetFileReader("audio_file", "recording.wav", bytes.NewReader(audio.Bytes())).
		SetFormData(map[string]string{
			"title":       form.Title,
			"description": form.Description,
			"script_text": form.ScriptText,
		}).
		SetResult(&rec).
		Post("/recordings/upload")
	if err != nil {
		return nil, errs.WrapCode(errs.CodeNetwork, err, "upload recording")
	}
	if resp.IsError() {
		return nil, statusError(resp, "upload recording")
	}
	return &rec, nil
}

// Remove deletes a recording owned by the caller.
func (c *Client) Remove(ctx context.Context, id string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete("/recordings/" + id)
	if err != nil {
		return errs.WrapCode(errs.CodeNetwork, err, "delete recording")
	}
	if resp.IsError() {
		return statusError(resp, "delete recording")
	}
	return nil
}

// FetchProfile loads the caller's profile. A 404 is a valid "no profile yet"
// state rather than an error, reported through the found flag.
func (c *Client) FetchProfile(ctx context.Context) (*Profile, bool, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, false, err
	}

	var profile Profile
	resp, err := req.SetResult(&profile).Get("/user/profile")
	if err != nil {
		return nil, false, errs.WrapCode(errs.CodeNetwork, err, "fetch profile")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.IsError() {
		return nil, false, statusError(resp, "fetch profile")
	}
	return &profile, true, nil
}

// CreateProfile creates the caller's profile record. A conflict means the
// record already exists and counts as success.
func (c *Client) CreateProfile(ctx context.Context, userID, email, fullName string) (*Profile, CreateOutcome, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, Created, err
	}

	var profile Profile
	resp, err := req.
		SetBody(map[string]string{
			"user_id":   userID,
			"email":     email,
			"full_name": fullName,
		}).
		SetResult(&profile).
		Post("/user/profile/create")
	if err != nil {
		return nil, Created, errs.WrapCode(errs.CodeNetwork, err, "create profile")
	}
	if resp.StatusCode() == http.StatusConflict {
		return nil, AlreadyExists, nil
	}
	if resp.IsError() {
		return nil, Created, statusError(resp, "create profile")
	}
	return &profile, Created, nil
}

// UpdateProfile replaces the mutable profile fields.
func (c *Client) UpdateProfile(ctx context.Context, fullName, email string) (*Profile, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var profile Profile
	resp, err := req.
		SetBody(map[string]string{"full_name": fullName, "email": email}).
		SetResult(&profile).
		Put("/user/profile/update")
	if err != nil {
		return nil, errs.WrapCode(errs.CodeNetwork, err, "update profile")
	}
	if resp.IsError() {
		return nil, statusError(resp, "update profile")
	}
	return &profile, nil
}

// SyncProfile makes sure a profile record exists after sign-in. Safe to call
// on every sign-in; the server treats repeats as no-ops.
func (c *Client) SyncProfile(ctx context.Context) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Post("/user/profile/sync")
	if err != nil {
		return errs.WrapCode(errs.CodeNetwork, err, "sync profile")
	}
	if resp.IsError() {
		return statusError(resp, "sync profile")
	}
	return nil
}

// statusError maps an HTTP failure status onto the client error taxonomy.
func statusError(resp *resty.Response, action string) error {
	msg := fmt.Sprintf("%s: server returned %d", action, resp.StatusCode())
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.WithCode(errs.CodeUnauthorized, msg)
	case http.StatusNotFound:
		return errs.WithCode(errs.CodeNotFound, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errs.WithCode(errs.CodeValidation, msg)
	default:
		return errs.WithCode(errs.CodeNetwork, msg)
	}
}
