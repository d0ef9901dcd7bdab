package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Signer produces HMAC-SHA256 receipts for committed mutations so the outer
// layer can hand callers a verifiable proof of what was booked.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) (bool, error) {
	expected := s.Sign(data)

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.String("received", signature))
		return false, fmt.Errorf("invalid signature")
	}
	return true, nil
}

func (s *Signer) SignReceipt(transactionID string, amount decimal.Decimal, timestamp int64) string {
	data := fmt.Sprintf("%s:%s:%d", transactionID, amount.StringFixed(2), timestamp)
	return s.Sign([]byte(data))
}

func (s *Signer) VerifyReceipt(transactionID string, amount decimal.Decimal, timestamp int64, signature string) (bool, error) {
	data := fmt.Sprintf("%s:%s:%d", transactionID, amount.StringFixed(2), timestamp)
	return s.Verify([]byte(data), signature)
}
