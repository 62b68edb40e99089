package services

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/nimasrn/vtu-gateway/pkg/logger"
)

// legacyDefaultPin predates per-account PIN setup. It is only honored
// for accounts that never set a PIN, and only when explicitly enabled.
const legacyDefaultPin = "1234"

func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *PurchaseService) verifyPin(ctx context.Context, userID int64, pin string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	if user.PinHash == "" {
		if s.allowDefaultPin && pin == legacyDefaultPin {
			logger.Warn("accepted legacy default pin for account without pin", "user_id", userID)
			return nil
		}
		return ErrPinNotSet
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(pin)) != nil {
		return ErrIncorrectPin
	}
	return nil
}
