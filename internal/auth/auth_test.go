package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"neokatalyst/backend/internal/config"
	"neokatalyst/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

// MockRepository satisfies repository.Repository for the tenant methods the
// middleware touches; the rest are stubs.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

// Stubs for the rest of the interface
func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return nil
}
func (m *MockRepository) GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	return nil, nil
}
func (m *MockRepository) ListWorkflows(ctx context.Context, tenantID, createdBy string) ([]*models.Workflow, error) {
	return nil, nil
}
func (m *MockRepository) SetWorkflowStatus(ctx context.Context, tenantID, id string, expected, next models.WorkflowStatus) (bool, error) {
	return false, nil
}
func (m *MockRepository) CreateTask(ctx context.Context, task *models.Task) error { return nil }
func (m *MockRepository) GetTask(ctx context.Context, tenantID, id string) (*models.Task, error) {
	return nil, nil
}
func (m *MockRepository) ListTasksByAssignee(ctx context.Context, tenantID, assigneeID string) ([]*models.Task, error) {
	return nil, nil
}
func (m *MockRepository) ListTasksByWorkflow(ctx context.Context, tenantID, workflowID string) ([]*models.Task, error) {
	return nil, nil
}
func (m *MockRepository) ListTasksByStep(ctx context.Context, tenantID, workflowID, stepID string) ([]*models.Task, error) {
	return nil, nil
}
func (m *MockRepository) SetTaskStatus(ctx context.Context, tenantID, id string, expected, next models.TaskStatus, completedAt *time.Time) (bool, error) {
	return false, nil
}
func (m *MockRepository) DashboardStats(ctx context.Context, tenantID string) (*models.DashboardStats, error) {
	return nil, nil
}

func fakeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	headerBytes, _ := json.Marshal(map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
		"kid": "test-key",
	})
	payload, _ := json.Marshal(claims)
	return base64.RawURLEncoding.EncodeToString(headerBytes) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

func newVerifier(issuer, clientID string) *oidc.IDTokenVerifier {
	return oidc.NewVerifier(issuer, &MockKeySet{}, &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: true, // Matches logic in auth.go for apiVerifier
	})
}

func TestRequireAuth_BearerToken_ExtractsIdentityAndTenant(t *testing.T) {
	mockRepo := new(MockRepository)
	expectedTenant := &models.Tenant{
		ID:     "tenant-123",
		Name:   "acme.com",
		Domain: "acme.com",
	}
	mockRepo.On("GetTenantByDomain", mock.Anything, "acme.com").Return(expectedTenant, nil)

	issuer := "https://test-issuer.com"
	fakeToken := fakeJWT(t, map[string]interface{}{
		"iss":   issuer,
		"aud":   "test-client",
		"sub":   "user-1",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": "user@acme.com",
		"roles": []string{"admin"},
	})

	a := &Auth{
		apiVerifier: newVerifier(issuer, "test-client"),
		repo:        mockRepo,
	}

	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken)
	rec := httptest.NewRecorder()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-123", TenantIDFrom(r.Context()))
		identity := IdentityFrom(r.Context())
		if assert.NotNil(t, identity) {
			assert.Equal(t, "user-1", identity.Subject)
			assert.Equal(t, "user@acme.com", identity.Email)
			assert.True(t, identity.IsAdmin())
		}
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	mockRepo.AssertExpectations(t)
}

func TestRequireAuth_GroupsClaimFallback(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("GetTenantByDomain", mock.Anything, "acme.com").
		Return(&models.Tenant{ID: "tenant-123", Domain: "acme.com"}, nil)

	issuer := "https://test-issuer.com"
	fakeToken := fakeJWT(t, map[string]interface{}{
		"iss":    issuer,
		"aud":    "test-client",
		"sub":    "user-2",
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Add(-1 * time.Minute).Unix(),
		"email":  "user2@acme.com",
		"groups": []string{"reviewers"},
	})

	a := &Auth{apiVerifier: newVerifier(issuer, "test-client"), repo: mockRepo}

	req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken)
	rec := httptest.NewRecorder()

	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFrom(r.Context())
		if assert.NotNil(t, identity) {
			assert.False(t, identity.IsAdmin())
			assert.True(t, identity.HasRole("reviewers"))
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_BypassMode(t *testing.T) {
	mockRepo := new(MockRepository)
	// Expect tenant lookup for "localhost" (from dev@localhost)
	mockRepo.On("GetTenantByDomain", mock.Anything, "localhost").Return(nil, fmt.Errorf("not found"))
	mockRepo.On("CreateTenant", mock.Anything, mock.MatchedBy(func(tenant *models.Tenant) bool {
		return tenant.Domain == "localhost"
	})).Run(func(args mock.Arguments) {
		argTenant := args.Get(1).(*models.Tenant)
		argTenant.ID = "dev-tenant-id"
	}).Return(nil)

	cfg := &config.Config{
		Environment:   "DEV",
		DevModeBypass: true,
	}
	a, err := New(context.Background(), cfg, mockRepo, &NoOpLogger{})
	assert.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	rec := httptest.NewRecorder()

	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev-tenant-id", TenantIDFrom(r.Context()))
		identity := IdentityFrom(r.Context())
		if assert.NotNil(t, identity) {
			assert.True(t, identity.IsAdmin(), "dev identity acts as admin")
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockRepo.AssertExpectations(t)
}

func TestRequireAuth_AutoProvisionTenant(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("GetTenantByDomain", mock.Anything, "startup.io").Return(nil, fmt.Errorf("not found"))
	mockRepo.On("CreateTenant", mock.Anything, mock.MatchedBy(func(tenant *models.Tenant) bool {
		return tenant.Domain == "startup.io" && tenant.Name == "startup.io"
	})).Run(func(args mock.Arguments) {
		argTenant := args.Get(1).(*models.Tenant)
		argTenant.ID = "new-tenant-id"
	}).Return(nil)

	issuer := "https://test-issuer.com"
	fakeToken := fakeJWT(t, map[string]interface{}{
		"iss":   issuer,
		"aud":   "test-client",
		"sub":   "founder",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": "founder@startup.io",
	})

	a := &Auth{apiVerifier: newVerifier(issuer, "test-client"), repo: mockRepo}
	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken)
	rec := httptest.NewRecorder()

	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "new-tenant-id", TenantIDFrom(r.Context()))
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	mockRepo.AssertExpectations(t)
}
