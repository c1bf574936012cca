package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreatePostHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		postRepo := new(MockPostRepository)
		postRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Post).ID = 10
		}).Return(nil)
		postRepo.On("GetByID", mock.Anything, uint(10)).Return(&models.Post{
			ID:     10,
			Title:  "Hello",
			UserID: 1,
			User:   models.User{ID: 1, Username: "alice"},
		}, nil)
		s := newTestServer(t, new(MockUserRepository), postRepo, nil)

		app := fiber.New()
		app.Post("/posts", asUser(1), s.CreatePost)

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/posts", map[string]any{
			"title":   "Hello",
			"content": "First post",
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Hello", body["title"])
	})

	t.Run("Missing title", func(t *testing.T) {
		s := newTestServer(t, new(MockUserRepository), new(MockPostRepository), nil)

		app := fiber.New()
		app.Post("/posts", asUser(1), s.CreatePost)

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/posts", map[string]any{
			"content": "no title",
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		s := newTestServer(t, new(MockUserRepository), new(MockPostRepository), nil)

		app := fiber.New()
		app.Post("/posts", s.CreatePost)

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/posts", map[string]any{
			"title":   "x",
			"content": "y",
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGetPostHandler(t *testing.T) {
	postRepo := new(MockPostRepository)
	postRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.Post{
		ID:    1,
		Title: "Hello",
		User:  models.User{ID: 1, Username: "alice"},
	}, nil)
	postRepo.On("GetByID", mock.Anything, uint(99)).Return(nil, gormNotFound())
	s := newTestServer(t, new(MockUserRepository), postRepo, nil)

	app := fiber.New()
	app.Get("/posts/:id", s.GetPost)

	t.Run("Found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Not found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/99", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Bad id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/banana", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdatePostHandler(t *testing.T) {
	alicePost := func() *models.Post {
		return &models.Post{ID: 1, Title: "Original", Content: "body", UserID: 1, DatePosted: time.Now().UTC()}
	}

	t.Run("Author updates", func(t *testing.T) {
		postRepo := new(MockPostRepository)
		postRepo.On("GetByID", mock.Anything, uint(1)).Return(alicePost(), nil)
		postRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
		s := newTestServer(t, new(MockUserRepository), postRepo, nil)

		app := fiber.New()
		app.Put("/posts/:id", asUser(1), s.UpdatePost)

		resp, err := app.Test(jsonRequest(t, http.MethodPut, "/posts/1", map[string]any{
			"title":   "Edited",
			"content": "new body",
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Edited", body["title"])
	})

	t.Run("Non-author is forbidden", func(t *testing.T) {
		postRepo := new(MockPostRepository)
		postRepo.On("GetByID", mock.Anything, uint(1)).Return(alicePost(), nil)
		s := newTestServer(t, new(MockUserRepository), postRepo, nil)

		app := fiber.New()
		app.Put("/posts/:id", asUser(2), s.UpdatePost)

		resp, err := app.Test(jsonRequest(t, http.MethodPut, "/posts/1", map[string]any{
			"title":   "Hijacked",
			"content": "x",
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		postRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestDeletePostHandler(t *testing.T) {
	t.Run("Author deletes", func(t *testing.T) {
		postRepo := new(MockPostRepository)
		postRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.Post{ID: 1, UserID: 1}, nil)
		postRepo.On("Delete", mock.Anything, uint(1)).Return(nil)
		s := newTestServer(t, new(MockUserRepository), postRepo, nil)

		app := fiber.New()
		app.Delete("/posts/:id", asUser(1), s.DeletePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/1", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Non-author is forbidden", func(t *testing.T) {
		postRepo := new(MockPostRepository)
		postRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.Post{ID: 1, UserID: 1}, nil)
		s := newTestServer(t, new(MockUserRepository), postRepo, nil)

		app := fiber.New()
		app.Delete("/posts/:id", asUser(2), s.DeletePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/1", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		postRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestListPostsHandler(t *testing.T) {
	postRepo := new(MockPostRepository)
	postRepo.On("Count", mock.Anything).Return(int64(12), nil)
	postRepo.On("List", mock.Anything, 5, 5).Return([]*models.Post{
		{ID: 7, Title: "Page two"},
	}, nil)
	s := newTestServer(t, new(MockUserRepository), postRepo, nil)

	app := fiber.New()
	app.Get("/posts", s.ListPosts)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts?page=2", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(12), body["total"])
	assert.Equal(t, float64(3), body["total_pages"])
}
