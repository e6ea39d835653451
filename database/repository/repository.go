package repository

import (
	notificationRepo "pwashop/database/repository/notification"
	userRepo "pwashop/database/repository/user"
)

// Re-export the UserRepository interface and constructor.
type UserRepository = userRepo.UserRepository

var NewMongoUserRepository = userRepo.NewMongoUserRepo

var ErrUserNotFound = userRepo.ErrUserNotFound

// Re-export the NotificationRepository interface and constructor.
type NotificationRepository = notificationRepo.NotificationRepository

type NotificationListOptions = notificationRepo.ListOptions

var NewMongoNotificationRepository = notificationRepo.NewMongoNotificationRepo

var ErrNotificationNotFound = notificationRepo.ErrNotificationNotFound
