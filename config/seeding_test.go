package config

import (
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p9e.in/dabs/models"
)

func openSeedDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Project{}, &models.User{}, &models.EmailSettings{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	DB = db
}

func TestRunAllSeeding(t *testing.T) {
	openSeedDB(t)

	if err := RunAllSeeding(); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	var project models.Project
	if err := DB.Where("code = ?", "MAIN").First(&project).Error; err != nil {
		t.Fatalf("default project missing: %v", err)
	}
	if project.Name != "Main Site" || !project.IsActive {
		t.Fatalf("project = %+v", project)
	}

	var admin models.User
	if err := DB.Where("username = ?", "admin").First(&admin).Error; err != nil {
		t.Fatalf("system administrator missing: %v", err)
	}
	if admin.ID != 1 {
		t.Fatalf("admin id = %d, want 1 (the protected account)", admin.ID)
	}
	if admin.Role != "admin" || admin.ProjectID != project.ID || !admin.IsActive {
		t.Fatalf("admin = %+v", admin)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("Welcome@123")); err != nil {
		t.Fatalf("default password does not verify: %v", err)
	}

	var settings models.EmailSettings
	if err := DB.First(&settings, 1).Error; err != nil {
		t.Fatalf("email settings missing: %v", err)
	}
	if settings.SMTPEnabled || settings.SMTPPort != 587 || settings.SMTPEncryption != "tls" {
		t.Fatalf("settings = %+v", settings)
	}
	if settings.FromEmail != "noreply@dabs.local" {
		t.Fatalf("from_email = %q", settings.FromEmail)
	}
}

func TestSeedingIsIdempotent(t *testing.T) {
	openSeedDB(t)

	if err := RunAllSeeding(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var firstHash string
	if err := DB.Model(&models.User{}).Where("username = ?", "admin").
		Pluck("password_hash", &firstHash).Error; err != nil {
		t.Fatalf("read admin hash: %v", err)
	}

	if err := RunAllSeeding(); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var projects, users, settings int64
	DB.Model(&models.Project{}).Count(&projects)
	DB.Model(&models.User{}).Count(&users)
	DB.Model(&models.EmailSettings{}).Count(&settings)
	if projects != 1 || users != 1 || settings != 1 {
		t.Fatalf("rows after rerun: projects=%d users=%d settings=%d", projects, users, settings)
	}

	// A rerun must not rotate the admin credential.
	var secondHash string
	if err := DB.Model(&models.User{}).Where("username = ?", "admin").
		Pluck("password_hash", &secondHash).Error; err != nil {
		t.Fatalf("reread admin hash: %v", err)
	}
	if firstHash != secondHash {
		t.Fatal("seeding rewrote the admin password hash")
	}
}
