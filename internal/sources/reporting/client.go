// Package reporting is the client for the analytics platform holding the
// index and measurement hierarchy.
package reporting

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// SystemName identifies the Reporting platform in errors and logs.
const SystemName = "reporting"

// Platform describes how the Reporting platform frames its responses.
var Platform = transport.Platform{
	Name:          SystemName,
	SuccessStatus: []int{http.StatusOK, http.StatusCreated},
	Envelope:      "results",
	MessageFields: []string{"response_message", "detail"},
}

// Config holds the Reporting connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// HTTPClient is used for both the token exchange and API calls.
	HTTPClient *http.Client
}

// Client talks to the Reporting REST API.
type Client struct {
	transport *transport.Client
}

// New exchanges the username and password for an access token and returns
// a ready client. The token is refreshed when its exp claim passes.
func New(ctx context.Context, cfg Config, opts ...transport.Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewConfigError(SystemName, "base URL is required", nil)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.NewConfigError(SystemName, "username and password are required", nil)
	}

	tokenURL := strings.TrimSuffix(cfg.BaseURL, "/") + "/token/"
	source := transport.NewPasswordSource(ctx, cfg.HTTPClient, tokenURL, cfg.Username, cfg.Password)
	auth, err := transport.NewTokenAuth(SystemName, "password", source, nil)
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

func listPath(resource string) string {
	return resource + "/?page_size=" + constants.ReportingPageSizeAll
}

// ListIndices returns every index.
func (c *Client) ListIndices(ctx context.Context) ([]Index, error) {
	var indices []Index
	if err := c.transport.Request(ctx, http.MethodGet, listPath("indices"), nil, &indices); err != nil {
		return nil, errors.WrapResource("fetch", "indices", "", err)
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Int("count", len(indices)).Msg("Fetched indices")
	return indices, nil
}

// CreateIndex creates an index. Visibility defaults to the platform-wide
// setting.
func (c *Client) CreateIndex(ctx context.Context, req IndexRequest) (*Index, error) {
	if req.VisibilityID == 0 {
		req.VisibilityID = constants.ReportingVisibilityID
	}
	if req.NameLocal == "" {
		req.NameLocal = req.Name
	}
	if req.DescriptionLocal == "" {
		req.DescriptionLocal = req.Description
	}

	var index Index
	if err := c.transport.RequestFirst(ctx, http.MethodPost, "indices/", req, &index); err != nil {
		return nil, errors.WrapResource("create", "index", req.Code, err)
	}
	if index.Code == "" {
		index.Code = req.Code
	}
	if index.Name == "" {
		index.Name = req.Name
	}
	if len(index.ParentIndexConnections) == 0 {
		index.ParentIndexConnections = req.ParentIndexConnections
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Str("index_code", index.Code).Int("id", index.ID).Msg("Created index")
	return &index, nil
}

// ListMeasurements returns every measurement.
func (c *Client) ListMeasurements(ctx context.Context) ([]Measurement, error) {
	var measurements []Measurement
	if err := c.transport.Request(ctx, http.MethodGet, listPath("measurements"), nil, &measurements); err != nil {
		return nil, errors.WrapResource("fetch", "measurements", "", err)
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Int("count", len(measurements)).Msg("Fetched measurements")
	return measurements, nil
}

// MeasurementsByCode returns the measurements whose code contains code.
func (c *Client) MeasurementsByCode(ctx context.Context, code string) ([]Measurement, error) {
	var measurements []Measurement
	path := "measurements/?code=" + url.QueryEscape(code)
	if err := c.transport.Request(ctx, http.MethodGet, path, nil, &measurements); err != nil {
		return nil, errors.WrapResource("fetch", "measurements", code, err)
	}
	return measurements, nil
}

// CreateMeasurement creates a measurement, optionally with its first
// values.
func (c *Client) CreateMeasurement(ctx context.Context, req MeasurementRequest) (*Measurement, error) {
	if req.VisibilityID == 0 {
		req.VisibilityID = constants.ReportingVisibilityID
	}
	if req.MaxValue == 0 {
		req.MinValue = constants.MeasurementMinValue
		req.MaxValue = constants.MeasurementMaxValue
	}
	if req.NameLocal == "" {
		req.NameLocal = req.Name
	}
	if req.DescriptionLocal == "" {
		req.DescriptionLocal = req.Description
	}

	var m Measurement
	if err := c.transport.RequestFirst(ctx, http.MethodPost, "measurements/", req, &m); err != nil {
		return nil, errors.WrapResource("create", "measurement", req.Code, err)
	}
	if m.Code == "" {
		m.Code = req.Code
	}
	if m.Name == "" {
		m.Name = req.Name
	}
	if len(m.IndexConnections) == 0 {
		m.IndexConnections = req.IndexConnections
	}
	logging.FromContext(ctx).Info().Str("system", SystemName).Str("measurement_code", m.Code).Int("id", m.ID).Msg("Created measurement")
	return &m, nil
}

// CreateMeasurementValue appends a value to an existing measurement.
func (c *Client) CreateMeasurementValue(ctx context.Context, value MeasurementValue) (*MeasurementValue, error) {
	var created MeasurementValue
	if err := c.transport.RequestFirst(ctx, http.MethodPost, "measurement-values/", value, &created); err != nil {
		return nil, errors.WrapResource("create", "measurement value", strconv.Itoa(value.MeasurementID), err)
	}
	if created.MeasurementID == 0 {
		created.MeasurementID = value.MeasurementID
	}
	return &created, nil
}

// ConnectMeasurement links a measurement to an index.
func (c *Client) ConnectMeasurement(ctx context.Context, indexID, measurementID int, percentage *float64) error {
	body := IndexMeasurementConnection{IndexID: indexID, MeasurementID: measurementID, Percentage: percentage}
	if err := c.transport.Request(ctx, http.MethodPost, "index-measurement-connections/", body, nil); err != nil {
		return errors.WrapResource("create", "index-measurement connection", strconv.Itoa(measurementID), err)
	}
	return nil
}

// ConnectIndex links a child index to a parent index.
func (c *Client) ConnectIndex(ctx context.Context, parentID, childID int, percentage *float64) error {
	body := IndexIndexConnection{ParentIndexID: parentID, ChildIndexID: childID, Percentage: percentage}
	if err := c.transport.Request(ctx, http.MethodPost, "index-index-connections/", body, nil); err != nil {
		return errors.WrapResource("create", "index-index connection", strconv.Itoa(childID), err)
	}
	return nil
}

// ListDepartments returns the departments known to the platform.
func (c *Client) ListDepartments(ctx context.Context) ([]Department, error) {
	var departments []Department
	if err := c.transport.Request(ctx, http.MethodGet, listPath("departments"), nil, &departments); err != nil {
		return nil, errors.WrapResource("fetch", "departments", "", err)
	}
	return departments, nil
}

// ListAccounts returns the platform's user accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.transport.Request(ctx, http.MethodGet, listPath("accounts"), nil, &accounts); err != nil {
		return nil, errors.WrapResource("fetch", "accounts", "", err)
	}
	return accounts, nil
}
