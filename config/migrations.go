package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/dabs/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "01062025_create_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Project{}, &models.User{}, &models.Briefing{},
					&models.Activity{}, &models.Subcontractor{}, &models.SubcontractorContact{},
					&models.SubcontractorTask{}, &models.EmailSettings{}, &models.ActivityLog{},
					&models.PasswordReset{})
			},
		},
		{
			ID: "21062025_add_task_date_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_subcontractor_tasks_sub_date ON dabs_subcontractor_tasks (subcontractor_id, task_date)").Error
			},
		},
		{
			ID: "15072025_add_report_emails",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ReportEmail{})
			},
		},
	})
	return m.Migrate()
}
