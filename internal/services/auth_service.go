package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"vault-betting/internal/models"
	"vault-betting/internal/utils"
)

// AuthService handles authentication business logic
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// ProcessWalletLogin finds or creates a user by wallet address. New users
// get a generated nickname; the retry loop absorbs the rare collision on
// the unique index.
func (s *AuthService) ProcessWalletLogin(walletAddress string) (*models.User, error) {
	var user models.User

	result := s.db.Where("wallet_address = ?", walletAddress).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		for attempt := 0; attempt < 3; attempt++ {
			nickname, err := utils.GenerateNickname()
			if err != nil {
				return nil, fmt.Errorf("failed to generate nickname: %w", err)
			}

			user = models.User{
				WalletAddress: walletAddress,
				Nickname:      nickname,
			}

			if err := s.db.Create(&user).Error; err == nil {
				log.Printf("New user created: wallet=%s nickname=%s (ID: %d)",
					walletAddress, nickname, user.ID)
				return &user, nil
			} else if attempt == 2 {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
		}
	} else if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	log.Printf("User logged in: wallet=%s (ID: %d)", walletAddress, user.ID)
	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateNickname changes a user's handle.
func (s *AuthService) UpdateNickname(userID uint, nickname string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}

	user.Nickname = nickname
	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update nickname: %w", err)
	}

	return &user, nil
}
