package services

import "ironup-backend/internal/models"

// resetEconomy forfeits everything earned in the current challenge.
// It only runs as part of leaving a group.
func resetEconomy(user *models.User) {
	user.Coin = 0
	user.History = []string{}
}
