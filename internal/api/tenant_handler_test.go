package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/provisioning"
)

type TenantHandlerTestSuite struct {
	suite.Suite
	router      *gin.Engine
	mockService *MockTenantService
	handler     *TenantHandler
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) tenant(args mock.Arguments) (*domain.Tenant, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantService) Create(ctx context.Context, req dto.CreateTenantRequest) (*domain.Tenant, error) {
	return m.tenant(m.Called(ctx, req))
}

func (m *MockTenantService) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return m.tenant(m.Called(ctx, id))
}

func (m *MockTenantService) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Tenant), args.Error(1)
}

func (m *MockTenantService) Suspend(ctx context.Context, id string) (*domain.Tenant, error) {
	return m.tenant(m.Called(ctx, id))
}

func (m *MockTenantService) Activate(ctx context.Context, id string) (*domain.Tenant, error) {
	return m.tenant(m.Called(ctx, id))
}

func (m *MockTenantService) Delete(ctx context.Context, id string) (*domain.Tenant, error) {
	return m.tenant(m.Called(ctx, id))
}

func (m *MockTenantService) Initialize(ctx context.Context, id, schemaName string) (*dto.InitializeTenantResponse, error) {
	args := m.Called(ctx, id, schemaName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.InitializeTenantResponse), args.Error(1)
}

func (m *MockTenantService) VerifySchema(ctx context.Context, id string) (*provisioning.VerifyReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provisioning.VerifyReport), args.Error(1)
}

func (s *TenantHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.mockService = new(MockTenantService)
	s.handler = NewTenantHandler(s.mockService)

	// Setup routes
	s.router.POST("/tenants", s.handler.CreateTenant)
	s.router.GET("/tenants", s.handler.ListTenants)
	s.router.GET("/tenants/:id", s.handler.GetTenant)
	s.router.POST("/tenants/:id/suspend", s.handler.SuspendTenant)
	s.router.DELETE("/tenants/:id", s.handler.DeleteTenant)
	s.router.POST("/tenants/:id/initialize", s.handler.InitializeTenant)
	s.router.GET("/tenants/:id/schema", s.handler.VerifyTenantSchema)
}

func TestTenantHandler(t *testing.T) {
	suite.Run(t, new(TenantHandlerTestSuite))
}

func (s *TenantHandlerTestSuite) serve(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *TenantHandlerTestSuite) TestCreateTenant_Success() {
	// Arrange
	now := time.Now()
	req := dto.CreateTenantRequest{Slug: "acme", Name: "Acme Corp"}
	created := &domain.Tenant{
		ID:         "tenant1",
		Slug:       "acme",
		Name:       "Acme Corp",
		SchemaName: "tenant_acme",
		Status:     domain.TenantStatusProvisioning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mockService.On("Create", mock.Anything, req).Return(created, nil)

	body, _ := json.Marshal(req)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/tenants", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")

	// Act
	s.handler.CreateTenant(c)

	// Assert
	s.Equal(http.StatusCreated, w.Code)
	var response dto.TenantResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)
	s.Equal("tenant1", response.ID)
	s.Equal("tenant_acme", response.SchemaName)
	s.Equal("provisioning", response.Status)
	s.mockService.AssertExpectations(s.T())
}

func (s *TenantHandlerTestSuite) TestCreateTenant_ValidationError() {
	w := s.serve(http.MethodPost, "/tenants", map[string]any{"name": "No Slug"})

	s.Equal(http.StatusBadRequest, w.Code)
	var response dto.Error
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal(string(domain.CodeInvalidRequest), response.ErrorCode)
	s.mockService.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *TenantHandlerTestSuite) TestCreateTenant_Exists() {
	req := dto.CreateTenantRequest{Slug: "acme", Name: "Acme Corp"}
	s.mockService.On("Create", mock.Anything, req).Return(nil, domain.NewError(domain.CodeTenantExists, "tenant acme already exists"))

	w := s.serve(http.MethodPost, "/tenants", req)

	s.Equal(http.StatusConflict, w.Code)
	var response dto.Error
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal(string(domain.CodeTenantExists), response.ErrorCode)
}

func (s *TenantHandlerTestSuite) TestListTenants_Success() {
	// Arrange
	filter := domain.TenantFilter{Status: domain.TenantStatusActive, Page: 2, PageSize: 10}
	s.mockService.On("List", mock.Anything, filter).Return([]domain.Tenant{
		{ID: "tenant1", Slug: "acme", Status: domain.TenantStatusActive},
		{ID: "tenant2", Slug: "globex", Status: domain.TenantStatusActive},
	}, nil)

	// Act
	w := s.serve(http.MethodGet, "/tenants?status=active&page=2&page_size=10", nil)

	// Assert
	s.Equal(http.StatusOK, w.Code)
	var response []dto.TenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Len(response, 2)
	s.Equal("globex", response[1].Slug)
}

func (s *TenantHandlerTestSuite) TestListTenants_Error() {
	s.mockService.On("List", mock.Anything, domain.TenantFilter{}).Return([]domain.Tenant(nil), errors.New("database error"))

	w := s.serve(http.MethodGet, "/tenants", nil)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "database error")
}

func (s *TenantHandlerTestSuite) TestGetTenant_NotFound() {
	s.mockService.On("GetByID", mock.Anything, "missing").Return(nil, domain.NewError(domain.CodeTenantNotFound, "tenant not found"))

	w := s.serve(http.MethodGet, "/tenants/missing", nil)

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *TenantHandlerTestSuite) TestSuspendTenant_InvalidTransition() {
	s.mockService.On("Suspend", mock.Anything, "tenant1").Return(nil, domain.NewError(domain.CodeInvalidTransition, "cannot move from deleted to suspended"))

	w := s.serve(http.MethodPost, "/tenants/tenant1/suspend", nil)

	s.Equal(http.StatusConflict, w.Code)
}

func (s *TenantHandlerTestSuite) TestDeleteTenant_Accepted() {
	s.mockService.On("Delete", mock.Anything, "tenant1").Return(&domain.Tenant{ID: "tenant1", Status: domain.TenantStatusDeleted}, nil)

	w := s.serve(http.MethodDelete, "/tenants/tenant1", nil)

	s.Equal(http.StatusAccepted, w.Code)
	var response dto.TenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal("deleted", response.Status)
}

func (s *TenantHandlerTestSuite) TestInitializeTenant_Success() {
	resp := &dto.InitializeTenantResponse{
		TenantID:   "tenant1",
		SchemaName: "tenant_acme",
		Status:     "active",
		Services: []provisioning.ServiceOutcome{
			{Service: "auth", Status: domain.RegistryStatusSuccess, TablesCreated: []string{"users", "roles"}},
		},
	}
	s.mockService.On("Initialize", mock.Anything, "tenant1", "tenant_acme").Return(resp, nil)

	w := s.serve(http.MethodPost, "/tenants/tenant1/initialize", dto.InitializeTenantRequest{SchemaName: "tenant_acme"})

	s.Equal(http.StatusOK, w.Code)
	var body dto.InitializeTenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("active", body.Status)
	s.Equal([]string{"users", "roles"}, body.Services[0].TablesCreated)
}

func (s *TenantHandlerTestSuite) TestInitializeTenant_FailureStillReportsServices() {
	resp := &dto.InitializeTenantResponse{
		TenantID:   "tenant1",
		SchemaName: "tenant_acme",
		Status:     "provisioning",
		Services: []provisioning.ServiceOutcome{
			{Service: "auth", Status: domain.RegistryStatusSuccess},
			{Service: "orders", Status: domain.RegistryStatusFailed, Error: "permission denied"},
		},
	}
	s.mockService.On("Initialize", mock.Anything, "tenant1", "tenant_acme").
		Return(resp, domain.NewError(domain.CodeSchemaProvisionFailure, "orders failed"))

	w := s.serve(http.MethodPost, "/tenants/tenant1/initialize", dto.InitializeTenantRequest{SchemaName: "tenant_acme"})

	s.Equal(http.StatusInternalServerError, w.Code)
	var body dto.InitializeTenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Require().Len(body.Services, 2)
	s.Equal("permission denied", body.Services[1].Error)
}

func (s *TenantHandlerTestSuite) TestInitializeTenant_MissingSchemaName() {
	w := s.serve(http.MethodPost, "/tenants/tenant1/initialize", map[string]any{})

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *TenantHandlerTestSuite) TestVerifyTenantSchema() {
	report := &provisioning.VerifyReport{SchemaName: "tenant_acme", SchemaExists: true, Complete: true}
	s.mockService.On("VerifySchema", mock.Anything, "tenant1").Return(report, nil)

	w := s.serve(http.MethodGet, "/tenants/tenant1/schema", nil)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"schema_name":"tenant_acme","schema_exists":true,"services":null,"extra":null,"complete":true}`, w.Body.String())
}
