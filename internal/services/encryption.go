package services

import (
	"fmt"

	"missionrewards/internal/crypto"
	"missionrewards/internal/models"
)

// PayoutCipher protects the contact details a cash reward is paid out to.
type PayoutCipher struct {
	cipher *crypto.FieldCipher
}

func NewPayoutCipher(key []byte) (*PayoutCipher, error) {
	c, err := crypto.NewFieldCipher(key)
	if err != nil {
		return nil, err
	}
	return &PayoutCipher{cipher: c}, nil
}

// SealReward encrypts the reward's email and phone in place before storage.
func (p *PayoutCipher) SealReward(rw *models.Reward) error {
	email, err := p.cipher.Seal(rw.Email)
	if err != nil {
		return fmt.Errorf("encrypt reward email: %w", err)
	}
	phone, err := p.cipher.Seal(rw.Phone)
	if err != nil {
		return fmt.Errorf("encrypt reward phone: %w", err)
	}
	rw.Email, rw.Phone = email, phone
	return nil
}

// OpenReward decrypts a reward read back from the database.
func (p *PayoutCipher) OpenReward(rw *models.Reward) error {
	email, err := p.cipher.Open(rw.Email)
	if err != nil {
		return fmt.Errorf("decrypt reward email: %w", err)
	}
	phone, err := p.cipher.Open(rw.Phone)
	if err != nil {
		return fmt.Errorf("decrypt reward phone: %w", err)
	}
	rw.Email, rw.Phone = email, phone
	return nil
}
