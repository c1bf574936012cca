// Package seed creates demo data for the application database. It is meant
// for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password every seeded user gets.
const DemoPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewFactory creates a Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:  trimUsername(gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(10, 99))),
		Email:     gofakeit.Email(),
		Password:  string(hashed),
		ImageFile: models.DefaultAvatar,
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post for the given author without persisting it.
// Posting dates are spread over the last maxDaysBack days so pagination has
// something realistic to order.
func (f *Factory) BuildPost(user *models.User, maxDaysBack int, overrides ...func(*models.Post)) *models.Post {
	if maxDaysBack <= 0 {
		maxDaysBack = 90
	}

	post := &models.Post{
		Title:   gofakeit.Sentence(f.rand.Intn(5) + 3),
		Content: gofakeit.Paragraph(f.rand.Intn(3)+1, 3, 8, "\n\n"),
		UserID:  user.ID,
	}

	daysBack := f.rand.Intn(maxDaysBack)
	hoursBack := f.rand.Intn(24)
	minsBack := f.rand.Intn(60)
	post.DatePosted = time.Now().UTC().
		Add(-time.Duration(daysBack)*24*time.Hour -
			time.Duration(hoursBack)*time.Hour -
			time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.Create(&posts).Error
}

// trimUsername keeps generated usernames inside the schema's 20-char limit.
func trimUsername(name string) string {
	if len(name) > 20 {
		return name[:20]
	}
	return name
}
