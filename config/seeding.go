package config

import (
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"p9e.in/dabs/models"
)

// RunAllSeeding runs all seeding operations in the correct order
func RunAllSeeding() error {
	log.Println("=== Starting Database Seeding ===")

	log.Println("[1/3] Seeding Default Project...")
	if err := SeedDefaultProject(); err != nil {
		return err
	}

	log.Println("[2/3] Seeding System Administrator...")
	if err := SeedSystemAdmin(); err != nil {
		return err
	}

	log.Println("[3/3] Seeding Email Settings...")
	if err := SeedEmailSettings(); err != nil {
		return err
	}

	log.Println("=== Database Seeding Complete ===")
	return nil
}

// SeedDefaultProject creates the first project so logins and briefings
// have a tenant to scope to.
func SeedDefaultProject() error {
	var project models.Project
	err := DB.Where("code = ?", "MAIN").First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		project = models.Project{
			Name:     "Main Site",
			Code:     "MAIN",
			IsActive: true,
		}
		if err := DB.Create(&project).Error; err != nil {
			log.Printf("Error creating default project: %v", err)
			return err
		}
		log.Printf("Created project: %s (ID: %d)", project.Name, project.ID)
		return nil
	} else if err != nil {
		return err
	}
	log.Printf("Project already exists: %s", project.Name)
	return nil
}

// SeedSystemAdmin creates the protected administrator account. It is the
// first user inserted, so it takes id 1, which the admin handlers refuse
// to delete, deactivate or demote.
func SeedSystemAdmin() error {
	var existing models.User
	err := DB.Where("username = ?", "admin").First(&existing).Error
	if err == nil {
		log.Printf("System administrator already exists: %s", existing.Username)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var project models.Project
	if err := DB.Where("code = ?", "MAIN").First(&project).Error; err != nil {
		log.Printf("Error: default project not found, run SeedDefaultProject first: %v", err)
		return err
	}

	// Default password for the seeded admin (should be changed on first login)
	defaultPassword := "Welcome@123"
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return err
	}

	admin := models.User{
		Username:     "admin",
		PasswordHash: string(passwordHash),
		Name:         "System Administrator",
		Email:        "admin@dabs.local",
		Role:         "admin",
		ProjectID:    project.ID,
		IsActive:     true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Printf("Error creating system administrator: %v", err)
		return err
	}

	log.Printf("Created user: %s (ID: %d)", admin.Username, admin.ID)
	log.Println("========================================")
	log.Println("DEFAULT CREDENTIALS (change immediately!):")
	log.Println("----------------------------------------")
	log.Println("Administrator: admin / Welcome@123")
	log.Println("========================================")
	return nil
}

// SeedEmailSettings creates the singleton outbound-mail configuration row.
func SeedEmailSettings() error {
	var settings models.EmailSettings
	err := DB.First(&settings, 1).Error
	if err == nil {
		log.Println("Email settings already exist")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	settings = models.EmailSettings{
		ID:             1,
		SMTPEnabled:    false,
		SMTPPort:       587,
		SMTPEncryption: "tls",
		SMTPAuth:       true,
		FromEmail:      "noreply@dabs.local",
		FromName:       "Daily Activity Briefing",
	}
	if err := DB.Create(&settings).Error; err != nil {
		log.Printf("Error creating email settings: %v", err)
		return err
	}
	log.Println("Created default email settings")
	return nil
}
