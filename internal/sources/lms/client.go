// Package lms is the client for the learning-management platform: its user
// directory, organizational units, courses and course participants.
package lms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/names"
)

// SystemName identifies the LMS in errors and logs.
const SystemName = "lms"

// Platform describes how the LMS frames its responses. Payload keys are
// normalized to snake_case before decoding.
var Platform = transport.Platform{
	Name:          SystemName,
	SuccessStatus: []int{http.StatusOK},
	Envelope:      "data",
	MessageFields: []string{"message", "error", "error_description"},
	NormalizeKeys: names.CamelToSnakeMap,
}

// Config holds the LMS connection settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// HTTPClient is used for both the token exchange and API calls.
	HTTPClient *http.Client
}

// Client talks to the LMS REST API.
type Client struct {
	transport *transport.Client
}

// New authenticates with the client_credentials grant and returns a
// ready client. Authentication failure is returned as
// *errors.AuthenticationError.
func New(ctx context.Context, cfg Config, opts ...transport.Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultLMSBaseURL
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.NewConfigError(SystemName, "client id and client secret are required", nil)
	}

	tokenURL := strings.TrimSuffix(cfg.BaseURL, "/") + "/oauth/token"
	source := transport.ClientCredentialsSource(ctx, cfg.HTTPClient, tokenURL, cfg.ClientID, cfg.ClientSecret, constants.LMSTokenScope)
	auth, err := transport.NewTokenAuth(SystemName, "client_credentials", source, map[string]string{
		"ClientId": cfg.ClientID,
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Msg("Created access token")

	if cfg.HTTPClient != nil {
		opts = append([]transport.Option{transport.WithHTTPClient(cfg.HTTPClient)}, opts...)
	}
	tc, err := transport.New(cfg.BaseURL, Platform, auth, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{transport: tc}, nil
}

// NewWithTransport wraps an already configured transport client.
func NewWithTransport(tc *transport.Client) *Client {
	return &Client{transport: tc}
}

// Transport returns the underlying transport client.
func (c *Client) Transport() *transport.Client {
	return c.transport
}

// ListUsers returns every user in the directory.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.transport.Request(ctx, http.MethodGet, "v3/users", nil, &users); err != nil {
		return nil, errors.WrapResource("fetch", "users", "", err)
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Int("count", len(users)).Msg("Fetched users")
	return users, nil
}

// CreateUser creates a user and activates it immediately.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Activate == "" {
		req.Activate = ActivateInstant
	}
	if req.UserPermission == "" {
		req.UserPermission = constants.UserPermission
	}
	var user User
	if err := c.transport.Request(ctx, http.MethodPost, "v3/users", req, &user); err != nil {
		return nil, errors.WrapResource("create", "user", req.Email, err)
	}
	return &user, nil
}

// UpdateUser patches the modeled fields of the user with employeeID.
func (c *Client) UpdateUser(ctx context.Context, employeeID string, req UpdateUserRequest) (*User, error) {
	if req.UserPermission == "" {
		req.UserPermission = constants.UserPermission
	}
	path := "v3/users-employee_id/" + url.PathEscape(strings.TrimSpace(employeeID))
	var user User
	if err := c.transport.Request(ctx, http.MethodPatch, path, req, &user); err != nil {
		return nil, errors.WrapResource("update", "user", employeeID, err)
	}
	return &user, nil
}

// EnableUser activates the user with email. Enabling an active user is a
// no-op on the remote side.
func (c *Client) EnableUser(ctx context.Context, email string) error {
	return c.setActivation(ctx, "enable", email, ActivateInstant)
}

// DisableUser deactivates the user with email.
func (c *Client) DisableUser(ctx context.Context, email string) error {
	return c.setActivation(ctx, "disable", email, ActivateDeactivate)
}

func (c *Client) setActivation(ctx context.Context, op, email, value string) error {
	path := "v3/users-email/" + url.PathEscape(strings.TrimSpace(email))
	body := map[string]string{"activate": value}
	if err := c.transport.Request(ctx, http.MethodPatch, path, body, nil); err != nil {
		return errors.WrapResource(op, "user", email, err)
	}
	return nil
}

// ListUnits returns every organizational unit.
func (c *Client) ListUnits(ctx context.Context) ([]Unit, error) {
	var units []Unit
	if err := c.transport.Request(ctx, http.MethodGet, "v3/units", nil, &units); err != nil {
		return nil, errors.WrapResource("fetch", "units", "", err)
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Int("count", len(units)).Msg("Fetched units")
	return units, nil
}

// CreateUnit creates an organizational unit.
func (c *Client) CreateUnit(ctx context.Context, req CreateUnitRequest) (*Unit, error) {
	var unit Unit
	if err := c.transport.Request(ctx, http.MethodPost, "v3/units", req, &unit); err != nil {
		return nil, errors.WrapResource("create", "unit", req.Code, err)
	}
	if unit.Code == "" {
		unit.Code = req.Code
	}
	if unit.Name == "" {
		unit.Name = req.Name
	}
	return &unit, nil
}

// DeleteUnit removes an organizational unit.
func (c *Client) DeleteUnit(ctx context.Context, id int) error {
	if err := c.transport.Request(ctx, http.MethodDelete, "v3/units/"+strconv.Itoa(id), nil, nil); err != nil {
		return errors.WrapResource("delete", "unit", strconv.Itoa(id), err)
	}
	return nil
}

// ListCourses returns every course.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := c.transport.Request(ctx, http.MethodGet, "v3/courses", nil, &courses); err != nil {
		return nil, errors.WrapResource("fetch", "courses", "", err)
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Int("count", len(courses)).Msg("Fetched courses")
	return courses, nil
}

// ListParticipants returns the participants of the course with id.
func (c *Client) ListParticipants(ctx context.Context, courseID int) ([]Participant, error) {
	var participants []Participant
	path := fmt.Sprintf("v3/courses/%d/participants", courseID)
	if err := c.transport.Request(ctx, http.MethodGet, path, nil, &participants); err != nil {
		return nil, errors.WrapResource("fetch", "participants", strconv.Itoa(courseID), err)
	}
	return participants, nil
}
