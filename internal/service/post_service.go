package service

import (
	"context"
	"errors"
	"math"
	"time"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"

	"gorm.io/gorm"
)

// DefaultPageSize is the number of posts per page on listing endpoints.
const DefaultPageSize = 5

const maxPageSize = 50

// PostService implements post CRUD with ownership enforcement and pagination.
type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
}

type CreatePostInput struct {
	UserID  uint
	Title   string
	Content string
}

type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Title   string
	Content string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// ListPostsInput selects one page of the listing, optionally restricted to a
// single author's posts.
type ListPostsInput struct {
	Page     int
	PageSize int
	Username string
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository) *PostService {
	return &PostService{postRepo: postRepo, userRepo: userRepo}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidatePostTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{
		Title:      in.Title,
		Content:    in.Content,
		DatePosted: time.Now().UTC(),
		UserID:     in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	// Reload with author data for the response
	return s.GetPost(ctx, post.ID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.GetPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	if err := validation.ValidatePostTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post.Title = in.Title
	post.Content = in.Content
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.GetPost(ctx, in.PostID)
	if err != nil {
		return err
	}

	if post.UserID != in.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListPosts returns one page of posts, newest first. Pages are 1-based; a
// page past the end comes back empty rather than as an error.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*models.PostPage, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := (page - 1) * pageSize

	var (
		posts []*models.Post
		total int64
		err   error
	)

	if in.Username != "" {
		user, uerr := s.userRepo.GetByUsername(ctx, in.Username)
		if uerr != nil {
			return nil, uerr
		}
		if user == nil {
			return nil, models.NewNotFoundError("User", in.Username)
		}
		if total, err = s.postRepo.CountByUserID(ctx, user.ID); err != nil {
			return nil, models.NewInternalError(err)
		}
		if posts, err = s.postRepo.ListByUserID(ctx, user.ID, pageSize, offset); err != nil {
			return nil, models.NewInternalError(err)
		}
	} else {
		if total, err = s.postRepo.Count(ctx); err != nil {
			return nil, models.NewInternalError(err)
		}
		if posts, err = s.postRepo.List(ctx, pageSize, offset); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	if posts == nil {
		posts = []*models.Post{}
	}

	return &models.PostPage{
		Posts:      posts,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}
