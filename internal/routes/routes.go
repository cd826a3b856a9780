package routes

import (
	"family-taxi/internal/handlers"
	"family-taxi/internal/middleware"
	"family-taxi/internal/models"
	"family-taxi/internal/services"
	"family-taxi/internal/utils"
	"family-taxi/internal/websocket"

	"github.com/gin-gonic/gin"
)

// Deps - всё, что нужно обработчикам API
type Deps struct {
	Users     *services.UserService
	Trips     *services.TripService
	Locations *services.LocationService
	JWT       *utils.JWTManager
	Revoker   services.TokenRevoker
	WS        *websocket.Manager
	UploadDir string
}

func SetupRoutes(api *gin.RouterGroup, d Deps) {
	// Публичные маршруты для аутентификации
	api.POST("/register", handlers.AuthRegister(d.Users))
	api.POST("/login", handlers.AuthLogin(d.Users))

	// Защищенные маршруты (требуют аутентификации)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(d.JWT, d.Revoker))
	{
		protected.POST("/logout", handlers.AuthLogout(d.Users))
		protected.GET("/user", handlers.GetCurrentUser(d.Users))
		protected.PUT("/user/photo", handlers.UserUpdatePhoto(d.Users, d.UploadDir))
		protected.POST("/user/location", handlers.UserUpdateLocation(d.Users))
		protected.GET("/users/:id", handlers.UserGetByID(d.Users))

		// Сохранённые места и поиск адресов
		protected.GET("/locations", handlers.LocationsList(d.Locations))
		protected.POST("/locations", handlers.LocationCreate(d.Locations))
		protected.POST("/locations/search", handlers.LocationSearch(d.Locations))

		// Просмотр поездки доступен любой роли, права проверяет сервис
		protected.GET("/trips/:id", handlers.TripGetByID(d.Trips))
		protected.GET("/passenger/trips/:id", handlers.TripGetByID(d.Trips))

		// Поездки пассажира. /passenger/trips - путь, которым пользуется мобильный клиент.
		for _, prefix := range []string{"/trips", "/passenger/trips"} {
			passenger := protected.Group(prefix, middleware.RequireRole(models.RolePassenger))
			passenger.POST("", handlers.TripCreate(d.Trips))
			passenger.POST("/estimate", handlers.TripEstimate(d.Trips))
			passenger.GET("/recent", handlers.TripGetRecent(d.Trips))
			passenger.POST("/:id/request", handlers.TripRequest(d.Trips))
			passenger.POST("/:id/cancel", handlers.TripCancel(d.Trips))
			passenger.POST("/:id/rate", handlers.TripRateDriver(d.Trips))
		}

		// Роуты для водителей
		driver := protected.Group("/driver", middleware.RequireRole(models.RoleDriver))
		{
			driver.POST("/status", handlers.DriverUpdateStatus(d.Users))
			driver.GET("/stats/today", handlers.DriverStatsToday(d.Trips))
			driver.GET("/trips/active", handlers.DriverActiveTrip(d.Trips))
			driver.GET("/trips/requests", handlers.DriverNextRequest(d.Trips))
			driver.GET("/trips/:id", handlers.TripGetByID(d.Trips))
			driver.POST("/trips/:id/accept", handlers.DriverAccept(d.Trips))
			driver.POST("/trips/:id/decline", handlers.DriverDecline(d.Trips))
			driver.POST("/trips/:id/arrived", handlers.DriverArrived(d.Trips))
			driver.POST("/trips/:id/start", handlers.DriverStart(d.Trips))
			driver.POST("/trips/:id/complete", handlers.DriverComplete(d.Trips))
			driver.POST("/trips/:id/rate", handlers.DriverRatePassenger(d.Trips))
		}

		admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", handlers.AdminListUsers(d.Users))
			admin.POST("/users", handlers.AdminCreateUser(d.Users))
			admin.DELETE("/users/:id", handlers.AdminDeleteUser(d.Users))
		}

		// WebSocket подключение для получения обновлений в реальном времени
		if d.WS != nil {
			protected.GET("/ws", d.WS.Handler())
		}
	}
}
