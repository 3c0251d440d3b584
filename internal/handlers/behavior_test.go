package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/reelist/engine/pkg/models"
)

// MockBehaviorService is a mock implementation for testing
type MockBehaviorService struct {
	mock.Mock
}

func (m *MockBehaviorService) Record(ctx context.Context, req *models.BehaviorEventRequest) (*models.BehaviorEvent, error) {
	args := m.Called(ctx, req)
	if event := args.Get(0); event != nil {
		return event.(*models.BehaviorEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBehaviorService) GetUserBehaviorAnalytics(ctx context.Context, userID uuid.UUID, limit int) (*models.UserBehaviorAnalytics, error) {
	args := m.Called(ctx, userID, limit)
	if analytics := args.Get(0); analytics != nil {
		return analytics.(*models.UserBehaviorAnalytics), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBehaviorService) Cleanup(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockSimilarityEngine is a mock implementation for testing
type MockSimilarityEngine struct {
	mock.Mock
}

func (m *MockSimilarityEngine) FindSimilar(ctx context.Context, userID uuid.UUID, limit int) ([]models.SimilarUser, error) {
	args := m.Called(ctx, userID, limit)
	if users := args.Get(0); users != nil {
		return users.([]models.SimilarUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSimilarityEngine) Similarity(ctx context.Context, userA, userB uuid.UUID) (*models.UserSimilarity, error) {
	args := m.Called(ctx, userA, userB)
	if sim := args.Get(0); sim != nil {
		return sim.(*models.UserSimilarity), args.Error(1)
	}
	return nil, args.Error(1)
}

func testHandlerLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBehaviorHandler_Record(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		requestBody    interface{}
		mockSetup      func(*MockBehaviorService)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "valid viewed event",
			requestBody: models.BehaviorEventRequest{
				UserID:    uuid.New(),
				ContentID: 42,
				Action:    models.ActionViewed,
			},
			mockSetup: func(m *MockBehaviorService) {
				m.On("Record", mock.Anything, mock.AnythingOfType("*models.BehaviorEventRequest")).
					Return(&models.BehaviorEvent{
						ID:        uuid.New(),
						ContentID: 42,
						Action:    models.ActionViewed,
						Timestamp: time.Now().UTC(),
					}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "unknown action kind fails validation",
			requestBody: map[string]interface{}{
				"user_id":    uuid.New().String(),
				"content_id": 42,
				"action":     "binged",
			},
			mockSetup:      func(m *MockBehaviorService) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_FAILED",
		},
		{
			name: "rated event without rating",
			requestBody: models.BehaviorEventRequest{
				UserID:    uuid.New(),
				ContentID: 42,
				Action:    models.ActionRated,
			},
			mockSetup:      func(m *MockBehaviorService) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_RATING",
		},
		{
			name: "storage failure surfaces as server error",
			requestBody: models.BehaviorEventRequest{
				UserID:    uuid.New(),
				ContentID: 42,
				Action:    models.ActionViewed,
			},
			mockSetup: func(m *MockBehaviorService) {
				m.On("Record", mock.Anything, mock.AnythingOfType("*models.BehaviorEventRequest")).
					Return(nil, errors.New("disk full"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "RECORD_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBehaviorService)
			tt.mockSetup(mockService)

			handler := NewBehaviorHandler(testHandlerLogger(), mockService, new(MockSimilarityEngine))

			body, _ := json.Marshal(tt.requestBody)
			req, _ := http.NewRequest("POST", "/api/v1/events", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = req

			handler.Record(c)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedError != "" {
				var response map[string]interface{}
				json.Unmarshal(w.Body.Bytes(), &response)
				errorObj := response["error"].(map[string]interface{})
				assert.Equal(t, tt.expectedError, errorObj["code"])
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestBehaviorHandler_Analytics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	t.Run("storage failure substitutes zero-value analytics", func(t *testing.T) {
		mockService := new(MockBehaviorService)
		mockService.On("GetUserBehaviorAnalytics", mock.Anything, userID, 100).
			Return(nil, errors.New("connection refused"))

		handler := NewBehaviorHandler(testHandlerLogger(), mockService, new(MockSimilarityEngine))

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/api/v1/users/"+userID.String()+"/analytics", nil)
		c.Params = gin.Params{{Key: "userId", Value: userID.String()}}

		handler.Analytics(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(0), data["total_views"])
		assert.Equal(t, float64(0), data["completion_rate"])
		assert.Empty(t, data["action_counts"])

		mockService.AssertExpectations(t)
	})

	t.Run("derived analytics pass through", func(t *testing.T) {
		mockService := new(MockBehaviorService)
		mockService.On("GetUserBehaviorAnalytics", mock.Anything, userID, 100).
			Return(&models.UserBehaviorAnalytics{
				TotalViews:     3,
				ActionCounts:   map[models.ActionKind]int{models.ActionViewed: 3},
				CompletionRate: 0.5,
				FavoriteGenres: []string{"Drama"},
			}, nil)

		handler := NewBehaviorHandler(testHandlerLogger(), mockService, new(MockSimilarityEngine))

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/api/v1/users/"+userID.String()+"/analytics", nil)
		c.Params = gin.Params{{Key: "userId", Value: userID.String()}}

		handler.Analytics(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(3), data["total_views"])
		assert.Equal(t, []interface{}{"Drama"}, data["favorite_genres"])
	})

	t.Run("malformed user id", func(t *testing.T) {
		mockService := new(MockBehaviorService)
		handler := NewBehaviorHandler(testHandlerLogger(), mockService, new(MockSimilarityEngine))

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/api/v1/users/not-a-uuid/analytics", nil)
		c.Params = gin.Params{{Key: "userId", Value: "not-a-uuid"}}

		handler.Analytics(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "GetUserBehaviorAnalytics", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBehaviorHandler_SimilarUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	t.Run("neighbors pass through", func(t *testing.T) {
		mockEngine := new(MockSimilarityEngine)
		mockEngine.On("FindSimilar", mock.Anything, userID, 10).
			Return([]models.SimilarUser{{UserID: uuid.New(), Score: 0.65}}, nil)

		handler := NewBehaviorHandler(testHandlerLogger(), new(MockBehaviorService), mockEngine)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/api/v1/users/"+userID.String()+"/similar", nil)
		c.Params = gin.Params{{Key: "userId", Value: userID.String()}}

		handler.SimilarUsers(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Len(t, response["data"], 1)
	})

	t.Run("no neighbors yields empty list not null", func(t *testing.T) {
		mockEngine := new(MockSimilarityEngine)
		mockEngine.On("FindSimilar", mock.Anything, userID, 10).Return(nil, nil)

		handler := NewBehaviorHandler(testHandlerLogger(), new(MockBehaviorService), mockEngine)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/api/v1/users/"+userID.String()+"/similar", nil)
		c.Params = gin.Params{{Key: "userId", Value: userID.String()}}

		handler.SimilarUsers(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})
}
