package handlers

import (
	"canteen-menu-service/internal/config"
	"canteen-menu-service/internal/services"
	"canteen-menu-service/internal/store"

	"go.uber.org/zap"
)

type Handler struct {
	Store  store.Store
	Menus  *services.Menus
	Logger *zap.Logger
	Config config.Config
}
