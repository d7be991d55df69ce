package services

import (
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"soluxe-backend/internal/models"
)

// VerifyWalletSignature checks a detached ed25519 signature over the exact
// message bytes. The wallet address is the base58 encoding of the 32-byte
// public key. Every malformed input path fails closed with
// models.ErrInvalidSignature.
func VerifyWalletSignature(walletAddress, message, signatureBase64 string) error {
	pubKey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return fmt.Errorf("%w: bad public key: %v", models.ErrInvalidSignature, err)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding: %v", models.ErrInvalidSignature, err)
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("%w: bad signature length %d", models.ErrInvalidSignature, len(sigBytes))
	}

	sig := solana.SignatureFromBytes(sigBytes)
	if !sig.Verify(pubKey, []byte(message)) {
		return models.ErrInvalidSignature
	}

	return nil
}
