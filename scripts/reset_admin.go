package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"p9e.in/dabs/models"
)

// One-off recovery tool: resets the system administrator's password when
// the usual change-password flow is unreachable.
//
//	go run scripts/reset_admin.go <new-password>
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	password := os.Getenv("NEW_ADMIN_PASSWORD")
	if len(os.Args) > 1 {
		password = os.Args[1]
	}
	if len(password) < 8 {
		log.Fatal("Usage: reset_admin <new-password> (minimum 8 characters)")
	}

	dsn := os.Getenv("DB_DSN")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	var admin models.User
	if err := db.First(&admin, 1).Error; err != nil {
		log.Fatal("System administrator (id 1) not found:", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}
	if err := db.Model(&admin).Updates(map[string]interface{}{
		"password_hash": string(hash),
		"is_active":     true,
	}).Error; err != nil {
		log.Fatal("Failed to update password:", err)
	}

	fmt.Println("========================================")
	fmt.Printf("Password reset for %s (ID: %d)\n", admin.Username, admin.ID)
	fmt.Println("The account has been reactivated if it was disabled.")
	fmt.Println("========================================")
}
