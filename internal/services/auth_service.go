// Package services – AuthService
//
// Implements the wallet-signature login flow: issue a single-use nonce,
// verify a personal-sign signature over the canonical welcome message, and
// mint a bearer token on success. The nonce is consumed by the first
// successful verify; a second verify with the same signature fails with
// ErrNoNonce.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// signMessageTemplate is the canonical message the wallet signs. The nonce
// slots into the security-code line; everything else is fixed bytes.
const signMessageTemplate = `Welcome to VoicePay!

To securely sign in, please confirm this message.

Security code: %s

This signature will not trigger any blockchain transaction or gas fee.`

// SignMessage renders the canonical login message for a nonce. Exposed so
// clients and tests build the exact bytes the service verifies.
func SignMessage(nonce string) string {
	return fmt.Sprintf(signMessageTemplate, nonce)
}

// defaultNonceTTL bounds how long an issued nonce stays verifiable.
const defaultNonceTTL = 10 * time.Minute

// AuthService issues login nonces and exchanges wallet signatures for
// bearer tokens.
type AuthService struct {
	Shards    *shard.Manager
	JWTSecret []byte
	TokenTTL  time.Duration
	// NonceTTL is the verify window for an issued nonce; zero means
	// defaultNonceTTL.
	NonceTTL time.Duration
}

// NewAuthService constructs an AuthService.
func NewAuthService(shards *shard.Manager, jwtSecret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{Shards: shards, JWTSecret: jwtSecret, TokenTTL: ttl}
}

func (s *AuthService) nonceTTL() time.Duration {
	if s.NonceTTL > 0 {
		return s.NonceTTL
	}
	return defaultNonceTTL
}

// IssueNonce generates and stores a fresh nonce for the address,
// overwriting any prior unconsumed one.
func (s *AuthService) IssueNonce(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidWallet
	}
	return s.Shards.For(address).IssueNonce(ctx)
}

// Verify checks a personal-sign signature over the canonical message built
// from the outstanding nonce. On success the nonce is consumed and a signed
// bearer token for the address is returned.
func (s *AuthService) Verify(ctx context.Context, address, signature string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidWallet
	}
	sh := s.Shards.For(address)

	nonce, issuedAt, err := sh.Nonce(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoNonce
		}
		return "", err
	}
	if time.Since(issuedAt) > s.nonceTTL() {
		// A stale nonce is unusable; clear it so the client has to restart
		// the login flow.
		if cerr := sh.ConsumeNonce(ctx); cerr != nil {
			return "", cerr
		}
		return "", ErrNoNonce
	}

	recovered, err := recoverSigner(SignMessage(nonce), signature)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if shard.Key(recovered.Hex()) != shard.Key(address) {
		return "", ErrInvalidSignature
	}

	if err := sh.ConsumeNonce(ctx); err != nil {
		return "", err
	}
	return s.mintToken(sh.Address())
}

// recoverSigner recovers the address that personal-signed message.
func recoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature length %d", len(sig))
	}
	// Wallets emit V as 27/28; crypto.SigToPub wants 0/1.
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// mintToken signs an HS256 bearer token whose subject is the lowercased
// wallet address.
func (s *AuthService) mintToken(address string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}
