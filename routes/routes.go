package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/dabs/config"
	"p9e.in/dabs/handlers"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/utils"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/login", handlers.Login).Methods("POST")
	r.HandleFunc("/password-reset/request", handlers.RequestPasswordReset).Methods("POST")
	r.HandleFunc("/password-reset/confirm", handlers.ConfirmPasswordReset).Methods("POST")
	r.HandleFunc("/health", handleHealth).Methods("GET")

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware)

	api.HandleFunc("/profile", handlers.Profile).Methods("GET")
	api.HandleFunc("/change-password", handlers.ChangePassword).Methods("POST")

	// Entity endpoints: the action form and the REST form share handlers
	registerCRUDRoutes(api, "/activities", handlers.Activities)
	registerCRUDRoutes(api, "/subcontractors", handlers.Subcontractors)
	api.HandleFunc("/briefings", handlers.Briefings).Methods("GET", "POST")
	api.HandleFunc("/safety", handlers.Safety).Methods("GET", "POST")

	// Reports
	api.HandleFunc("/reports/briefing", handlers.BriefingReport).Methods("GET")
	api.HandleFunc("/reports/briefing/email", handlers.EmailBriefingReport).Methods("POST")

	// =====================================================
	// Admin Routes (require the admin role)
	// =====================================================
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole("admin"))

	registerCRUDRoutes(admin, "/users", handlers.AdminUsers)
	admin.HandleFunc("/email-settings", handlers.EmailSettings).Methods("GET", "POST")
	admin.HandleFunc("/logs", handlers.ActivityLogs).Methods("GET", "POST")

	return r
}

// registerCRUDRoutes mounts one entity resource both ways: the action form
// rides the collection path, the REST form adds the id path.
func registerCRUDRoutes(router *mux.Router, path string, res handlers.Resource) {
	router.HandleFunc(path, res.Collection).Methods("GET", "POST")
	router.HandleFunc(path+"/{id}", res.Item).Methods("GET", "PUT", "DELETE")
}

// handleHealth reports whether the database behind the API is reachable.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if config.DB == nil {
		utils.WriteFail(w, utils.CodeDBConnection, "Database connection failed")
		return
	}
	sqlDB, err := config.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		utils.WriteFail(w, utils.CodeDBConnection, "Database connection failed")
		return
	}
	utils.WriteOK(w, map[string]interface{}{"status": "up"})
}
