package lms

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/sources/testhelper"
	"github.com/agentstation/orgsync/pkg/errors"
)

const tokenResponse = `{"access_token":"lms-token","token_type":"Bearer","expires_in":3600}`

func newTestClient(t *testing.T) (*Client, *testhelper.Server) {
	t.Helper()

	server := testhelper.NewServer(t)
	server.JSON(http.MethodPost, "/oauth/token", http.StatusOK, []byte(tokenResponse))

	client, err := New(context.Background(), Config{
		BaseURL:      server.URL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)
	return client, server
}

func TestNewAuthenticates(t *testing.T) {
	_, server := newTestClient(t)

	tokenReqs := server.Requests(http.MethodPost, "/oauth/token")
	require.Len(t, tokenReqs, 1)
	form := tokenReqs[0].Body["form"].(string)
	assert.Contains(t, form, "grant_type=client_credentials")
	assert.Contains(t, form, "scope=%2A")
}

func TestNewAuthenticationFailure(t *testing.T) {
	server := testhelper.NewServer(t)
	server.JSON(http.MethodPost, "/oauth/token", http.StatusUnauthorized, []byte(`{"error":"invalid_client"}`))

	client, err := New(context.Background(), Config{
		BaseURL:      server.URL,
		ClientID:     "client-1",
		ClientSecret: "wrong",
		HTTPClient:   server.Client(),
	})
	assert.Nil(t, client)
	require.Error(t, err)
	assert.True(t, errors.IsAuthError(err))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{BaseURL: "https://lms.example.com"})
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestListUsers(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodGet, "/v3/users", http.StatusOK, testhelper.LoadTestdata(t, "users.json"))

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	anna := users[0]
	assert.Equal(t, 501, anna.ID)
	assert.Equal(t, "0101803269", anna.EmployeeID)
	assert.Equal(t, "Anna Maria", anna.FirstName)
	assert.Equal(t, IDList{12}, anna.DepartmentIDs)
	assert.Equal(t, IDList{502}, anna.DirectManagerIDs)
	assert.True(t, anna.IsActive())

	bo := users[1]
	assert.Equal(t, IDList{10}, bo.DepartmentIDs)
	assert.Nil(t, bo.DirectManagerIDs)
	assert.False(t, bo.IsActive())

	assert.True(t, users[2].IsActive())

	reqs := server.Requests(http.MethodGet, "/v3/users")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer lms-token", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "client-1", reqs[0].Header.Get("ClientId"))
}

func TestCreateUser(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodPost, "/v3/users", http.StatusOK, []byte(`{"data":{"id":900,"employee_id":"0101803269","email":"anna@example.com"}}`))

	user, err := client.CreateUser(context.Background(), CreateUserRequest{
		FirstName:    "Anna Maria",
		LastName:     "Jensen",
		EmployeeID:   "0101803269",
		Email:        "anna@example.com",
		Username:     "anna@example.com",
		Title:        "Sales Lead",
		DepartmentID: []string{"12"},
	})
	require.NoError(t, err)
	assert.Equal(t, 900, user.ID)

	body := server.Requests(http.MethodPost, "/v3/users")[0].Body
	assert.Equal(t, "instant", body["activate"])
	assert.Equal(t, "user", body["user_permission"])
	assert.Equal(t, []any{"12"}, body["department_id"])
}

func TestUpdateUser(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodPatch, "/v3/users-employee_id/0101803269", http.StatusOK, []byte(`{"data":{"id":501}}`))

	_, err := client.UpdateUser(context.Background(), " 0101803269 ", UpdateUserRequest{
		FirstName:        "Anna Maria",
		LastName:         "Jensen",
		Username:         "anna@example.com",
		Title:            "Head of Sales",
		Email:            "anna@example.com",
		DepartmentID:     []string{"12"},
		DirectManagerIDs: []string{"502"},
	})
	require.NoError(t, err)

	body := server.Requests(http.MethodPatch, "/v3/users-employee_id/")[0].Body
	assert.Equal(t, "Head of Sales", body["title"])
	assert.Equal(t, []any{"502"}, body["direct_manager_ids"])
	assert.Equal(t, "user", body["user_permission"])
	assert.NotContains(t, body, "employee_id")
}

func TestEnableDisableUser(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodPatch, "/v3/users-email/anna@example.com", http.StatusOK, []byte(`{"data":{}}`))

	ctx := context.Background()
	require.NoError(t, client.DisableUser(ctx, "anna@example.com"))
	require.NoError(t, client.EnableUser(ctx, "anna@example.com"))

	reqs := server.Requests(http.MethodPatch, "/v3/users-email/")
	require.Len(t, reqs, 2)
	assert.Equal(t, "deactivate", reqs[0].Body["activate"])
	assert.Equal(t, "instant", reqs[1].Body["activate"])
}

func TestUpdateUserFailure(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodPatch, "/v3/users-employee_id/missing", http.StatusNotFound, []byte(`{"message":"User not found"}`))

	_, err := client.UpdateUser(context.Background(), "missing", UpdateUserRequest{})
	require.Error(t, err)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "User not found", apiErr.Message)
	assert.True(t, errors.IsNotFound(err))

	var resErr *errors.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "update", resErr.Operation)
}

func TestUnits(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodGet, "/v3/units", http.StatusOK, testhelper.LoadTestdata(t, "units.json"))
	server.JSON(http.MethodPost, "/v3/units", http.StatusOK, []byte(`{"data":{"id":20}}`))
	server.JSON(http.MethodDelete, "/v3/units/20", http.StatusOK, []byte(`{"data":null}`))

	ctx := context.Background()
	units, err := client.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Nil(t, units[0].ParentID)
	require.NotNil(t, units[1].ParentID)
	assert.Equal(t, 10, *units[1].ParentID)

	parent := 10
	unit, err := client.CreateUnit(ctx, CreateUnitRequest{Name: "Marketing", ParentID: &parent, Code: "100-Marketing"})
	require.NoError(t, err)
	assert.Equal(t, 20, unit.ID)
	assert.Equal(t, "100-Marketing", unit.Code)
	assert.Equal(t, "Marketing", unit.Name)

	body := server.Requests(http.MethodPost, "/v3/units")[0].Body
	assert.Equal(t, float64(10), body["parent_id"])

	require.NoError(t, client.DeleteUnit(ctx, 20))
}

func TestCoursesAndParticipants(t *testing.T) {
	client, server := newTestClient(t)
	server.JSON(http.MethodGet, "/v3/courses", http.StatusOK, []byte(`{"data":[{"id":42,"name":"Fire Safety","description":"Annual"}]}`))
	server.JSON(http.MethodGet, "/v3/courses/42/participants", http.StatusOK, testhelper.LoadTestdata(t, "participants.json"))

	ctx := context.Background()
	courses, err := client.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Fire Safety", courses[0].Name)

	participants, err := client.ListParticipants(ctx, 42)
	require.NoError(t, err)
	require.Len(t, participants, 3)
	assert.Equal(t, 501, participants[0].UserID)
	assert.True(t, participants[0].Finished())
	assert.False(t, participants[1].Finished())
	assert.True(t, participants[2].Finished(), "completion date marks a participant finished")
}

func TestIDListDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want IDList
	}{
		{`null`, nil},
		{`7`, IDList{7}},
		{`"7"`, IDList{7}},
		{`""`, nil},
		{`[1,"2",null]`, IDList{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got IDList
			require.NoError(t, got.UnmarshalJSON([]byte(tt.in)))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad IDList
	assert.Error(t, bad.UnmarshalJSON([]byte(`{"id":1}`)))
	assert.Equal(t, []string{"3", "14"}, IDList{3, 14}.Strings())
}
