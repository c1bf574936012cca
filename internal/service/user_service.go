package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"
)

// UserService handles profile reads and updates.
type UserService struct {
	userRepo repository.UserRepository
	avatars  *AvatarService
}

// UpdateProfileInput carries profile changes. AvatarContent is optional; when
// present it is resized and stored and the user's image file is swapped.
type UpdateProfileInput struct {
	UserID         uint
	Username       string
	Email          string
	AvatarFilename string
	AvatarContent  []byte
}

func NewUserService(userRepo repository.UserRepository, avatars *AvatarService) *UserService {
	return &UserService{userRepo: userRepo, avatars: avatars}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}

// UpdateProfile applies username/email changes and an optional avatar upload.
// Uniqueness is only re-checked for fields that actually changed, so keeping
// your own username never trips a false duplicate.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != "" && in.Username != user.Username {
		if err := validation.ValidateUsername(in.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.userRepo.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewDuplicateUsernameError()
		}
		user.Username = in.Username
	}

	if in.Email != "" && in.Email != user.Email {
		if err := validation.ValidateEmail(in.Email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.userRepo.GetByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewDuplicateEmailError()
		}
		user.Email = in.Email
	}

	if len(in.AvatarContent) > 0 {
		// The old avatar file is intentionally left on disk.
		filename, err := s.avatars.Save(in.AvatarFilename, in.AvatarContent)
		if err != nil {
			return nil, err
		}
		user.ImageFile = filename
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
