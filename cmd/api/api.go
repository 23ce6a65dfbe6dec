package api

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/storelinkhq/storelink-server/cmd/utils"
	"github.com/storelinkhq/storelink-server/service/devices"
	"github.com/storelinkhq/storelink-server/service/push"
	"gorm.io/gorm"
)

type APIServer struct {
	address     string
	db          *gorm.DB
	rdb         *redis.Client
	adminSecret string
}

func NewApiServer(address string, db *gorm.DB, rdb *redis.Client, adminSecret string) *APIServer {
	return &APIServer{
		address:     address,
		db:          db,
		rdb:         rdb,
		adminSecret: adminSecret,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	deviceHandler := devices.NewDeviceHandler(s.db, s.rdb)
	deviceHandler.RegisterRoutes(subrouter)

	pushHandler := push.NewPushHandler(s.db, s.adminSecret)
	pushHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", utils.AdminSecretHeader}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, cors(router)))
}
