package routes

import (
	"log"

	"github.com/gin-gonic/gin"

	config "github.com/mahfuz/blood-bridge-go/config"
	controllers "github.com/mahfuz/blood-bridge-go/controllers"
	engine "github.com/mahfuz/blood-bridge-go/engine"
	middleware "github.com/mahfuz/blood-bridge-go/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	eng, err := engine.New(engine.NewMongoStore(cfg.MongoClient, cfg.DBName))
	if err != nil {
		log.Fatalf("donation engine: %v", err)
	}

	// public
	r.POST("/auth/register", controllers.Register(cfg))
	r.POST("/auth/login", controllers.Login(cfg))
	r.POST("/requests", controllers.CreateRequest(cfg))
	r.GET("/requests/open", controllers.ListOpenRequests(cfg))

	// protected
	auth := middleware.AuthMiddleware(cfg)
	admin := middleware.AdminMiddleware()

	profile := r.Group("/profile")
	profile.Use(auth)
	{
		profile.GET("", controllers.GetProfile(cfg))
		profile.PATCH("", controllers.UpdateProfile(cfg))
		profile.POST("/image", controllers.UploadProfileImage(cfg))
	}

	notifs := r.Group("/notifications")
	notifs.Use(auth)
	{
		notifs.GET("", controllers.ListNotifications(cfg))
		notifs.PATCH("/:id/read", controllers.MarkNotificationRead(cfg))
	}

	adm := r.Group("/admin")
	adm.Use(auth, admin)
	{
		adm.GET("/stats", controllers.GetStats(cfg))

		adm.GET("/donors", controllers.ListDonors(cfg))
		adm.GET("/donors/search", controllers.SearchDonors(cfg))
		adm.GET("/donors/:id", controllers.GetDonor(cfg))
		adm.PATCH("/donors/:id", controllers.UpdateDonorStatus(cfg))

		adm.GET("/requests", controllers.ListRequests(cfg))
		adm.GET("/requests/:id", controllers.GetRequest(cfg))
		adm.PATCH("/requests/:id", controllers.UpdateRequest(cfg))
		adm.DELETE("/requests/:id", controllers.DeleteRequest(cfg))
		adm.POST("/requests/:id/donate", controllers.CompleteDonation(eng))

		adm.GET("/donations", controllers.ListDonations(cfg))
	}
}
