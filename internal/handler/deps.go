package handler

import (
	"chatwire/internal/app/chat"
	"chatwire/internal/app/presence"
	"chatwire/internal/app/storage"
	"chatwire/internal/app/store"
	"chatwire/internal/configs"
)

type AppDeps struct {
	Gateway        *chat.Gateway
	Config         *configs.AppConfig
	Store          *store.Store
	Presence       *presence.Tracker
	StorageService storage.StorageService
}
