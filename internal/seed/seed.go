package seed

import (
	"fmt"
	"log"

	"quill/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// Seed populates the database with demo users and posts. It also creates a
// well-known demo account (demo@quill.dev / password123) for manual testing.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding database with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	factory := NewFactory(db)

	users := make([]*models.User, 0, opts.NumUsers+1)

	demo, err := createDemoUser(db)
	if err != nil {
		return fmt.Errorf("demo user: %w", err)
	}
	users = append(users, demo)

	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			// Generated usernames can collide; skip and move on.
			log.Printf("skipping user %d: %v", i, err)
			continue
		}
		users = append(users, user)
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := users[factory.rand.Intn(len(users))]
		posts = append(posts, factory.BuildPost(author, 90))
	}
	if err := factory.CreatePostsBatch(posts); err != nil {
		return fmt.Errorf("post batch: %w", err)
	}

	log.Printf("Seeded %d users and %d posts.", len(users), len(posts))
	log.Printf("All seeded users have the password %q.", DemoPassword)
	return nil
}

func createDemoUser(db *gorm.DB) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:  "demo",
		Email:     "demo@quill.dev",
		Password:  string(hashed),
		ImageFile: models.DefaultAvatar,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// clearData removes posts before users to respect the foreign key.
func clearData(db *gorm.DB) error {
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error; err != nil {
		return err
	}
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{}).Error
}
