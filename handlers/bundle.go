package handlers

import (
	"pwashop/database/repository"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	UserRepo repository.UserRepository

	Notifications *NotificationHandler
	ServiceWorker *ServiceWorkerHandler
}
