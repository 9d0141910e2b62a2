package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procedure-staffing-api/internal/dto"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

type sweeperStub struct {
	advanced int
	err      error
}

func (s *sweeperStub) Sweep(ctx context.Context) (int, error) {
	return s.advanced, s.err
}

type creatorStub struct {
	requests []dto.CreatePostingRequest
	posters  []string
	failAt   int
}

func (c *creatorStub) CreatePosting(ctx context.Context, req dto.CreatePostingRequest, posterID string) (*models.Posting, error) {
	if c.failAt > 0 && len(c.requests)+1 == c.failAt {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferred candidates are required")
	}
	c.requests = append(c.requests, req)
	c.posters = append(c.posters, posterID)
	return &models.Posting{ID: "p-" + string(rune('0'+len(c.requests)))}, nil
}

type accountsStub struct {
	registered []models.UserRole
}

func (a *accountsStub) IssueToken(ctx context.Context, userID string) (*models.LoginResponse, error) {
	if userID == "ghost" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return &models.LoginResponse{AccessToken: "token-for-" + userID, ExpiresIn: 3600}, nil
}

func (a *accountsStub) RegisterUser(ctx context.Context, email, fullName, password string, role models.UserRole) (*models.User, error) {
	a.registered = append(a.registered, role)
	return &models.User{ID: "u-1", Email: email, FullName: fullName, Role: role}, nil
}

type harness struct {
	opts     *RootOptions
	svc      *Services
	closed   bool
	connects int
}

func newHarness() *harness {
	h := &harness{}
	h.svc = &Services{
		Sweeper:  &sweeperStub{advanced: 3},
		Postings: &creatorStub{},
		Accounts: &accountsStub{},
		Close:    func() error { h.closed = true; return nil },
	}
	h.opts = &RootOptions{Connect: func(ctx context.Context, opts *RootOptions) (*Services, error) {
		h.connects++
		return h.svc, nil
	}}
	return h
}

func (h *harness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), h.opts, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "staffingctl", cmd.Use)

	for _, name := range []string{"sweep", "seed", "token", "user"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness()
	code, _, stderr := h.run("--format", "yaml", "sweep")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid format")
	assert.Zero(t, h.connects)
}

func TestSweepCommand(t *testing.T) {
	h := newHarness()
	code, stdout, _ := h.run("sweep")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "advanced 3 sequential postings\n", stdout)
	assert.True(t, h.closed)

	code, stdout, _ = h.run("--format", "json", "sweep")
	require.Equal(t, ExitSuccess, code)
	assert.JSONEq(t, `{"status":"ok","data":{"advanced":3}}`, stdout)
}

func TestSweepCommandFailure(t *testing.T) {
	h := newHarness()
	h.svc.Sweeper = &sweeperStub{err: appErrors.Clone(appErrors.ErrStorage, "list sequential postings")}
	code, _, stderr := h.run("--format", "json", "sweep")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, `"code":"`+appErrors.ErrStorage.Code+`"`)
}

func TestConnectFailure(t *testing.T) {
	h := newHarness()
	h.opts.Connect = func(ctx context.Context, opts *RootOptions) (*Services, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	code, _, stderr := h.run("sweep")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "connection refused")
}

func TestTokenCommand(t *testing.T) {
	h := newHarness()
	code, stdout, _ := h.run("token", "anaes-1")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "token-for-anaes-1\n", stdout)

	code, _, stderr := h.run("token", "ghost")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, appErrors.ErrNotFound.Code)

	code, _, _ = h.run("token")
	assert.Equal(t, ExitFailure, code)
}

func TestUserAddCommand(t *testing.T) {
	h := newHarness()
	code, stdout, _ := h.run("user", "add", "--email", "c@example.com", "--name", "North Clinic", "--role", "clinic", "--password", "longenough")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "created CLINIC c@example.com")
	assert.Equal(t, []models.UserRole{models.RoleClinic}, h.svc.Accounts.(*accountsStub).registered)
}

func TestUserAddPasswordFromEnv(t *testing.T) {
	h := newHarness()
	code, _, stderr := h.run("user", "add", "--email", "a@example.com", "--name", "Dr A")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, passwordEnv)

	t.Setenv(passwordEnv, "fromenvpass")
	code, _, _ = h.run("user", "add", "--email", "a@example.com", "--name", "Dr A")
	assert.Equal(t, ExitSuccess, code)
}
