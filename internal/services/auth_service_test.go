package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

var jwtSecret = []byte("unit-test-jwt-secret")

func newSvcShards(t *testing.T) *shard.Manager {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return shard.NewManager(db, 0)
}

// signLogin signs the canonical message the way a browser wallet would:
// personal_sign over the rendered nonce message, V offset to 27/28.
func signLogin(t *testing.T, keyHex, nonce string) string {
	t.Helper()
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(SignMessage(nonce))), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func testWallet(t *testing.T) (keyHex, address string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return hexutil.Encode(crypto.FromECDSA(key))[2:], crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestSignMessage_EmbedsNonce(t *testing.T) {
	msg := SignMessage("abc123")
	if !strings.Contains(msg, "Security code: abc123") {
		t.Fatalf("nonce missing from message: %s", msg)
	}
	if !strings.HasPrefix(msg, "Welcome to VoicePay!") {
		t.Fatalf("unexpected message prefix: %s", msg)
	}
}

func TestAuthService_IssueNonce_InvalidAddress(t *testing.T) {
	svc := NewAuthService(newSvcShards(t), jwtSecret, time.Hour)
	if _, err := svc.IssueNonce(context.Background(), "not-an-address"); !errors.Is(err, ErrInvalidWallet) {
		t.Fatalf("got %v, want ErrInvalidWallet", err)
	}
}

func TestAuthService_Verify_FullFlow(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newSvcShards(t), jwtSecret, time.Hour)
	keyHex, address := testWallet(t)

	nonce, err := svc.IssueNonce(ctx, address)
	if err != nil {
		t.Fatalf("IssueNonce: %v", err)
	}

	token, err := svc.Verify(ctx, address, signLogin(t, keyHex, nonce))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	if claims.Subject != strings.ToLower(address) {
		t.Fatalf("subject = %q, want lowercased %q", claims.Subject, address)
	}
}

func TestAuthService_Verify_NonceIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newSvcShards(t), jwtSecret, time.Hour)
	keyHex, address := testWallet(t)

	nonce, err := svc.IssueNonce(ctx, address)
	if err != nil {
		t.Fatalf("IssueNonce: %v", err)
	}
	sig := signLogin(t, keyHex, nonce)

	if _, err := svc.Verify(ctx, address, sig); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	// Replaying the exact same signature fails: the nonce is gone.
	if _, err := svc.Verify(ctx, address, sig); !errors.Is(err, ErrNoNonce) {
		t.Fatalf("second verify: got %v, want ErrNoNonce", err)
	}
}

func TestAuthService_Verify_WrongSigner(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newSvcShards(t), jwtSecret, time.Hour)
	_, address := testWallet(t)
	otherKey, _ := testWallet(t)

	nonce, err := svc.IssueNonce(ctx, address)
	if err != nil {
		t.Fatalf("IssueNonce: %v", err)
	}
	if _, err := svc.Verify(ctx, address, signLogin(t, otherKey, nonce)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
	if _, err := svc.Verify(ctx, address, "0x00"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("malformed signature: got %v, want ErrInvalidSignature", err)
	}

	// Failed attempts must not consume the nonce.
	if got, _, err := svc.Shards.For(address).Nonce(ctx); err != nil || got != nonce {
		t.Fatalf("nonce should survive failed verifies: %q %v", got, err)
	}
}

func TestAuthService_Verify_ExpiredNonce(t *testing.T) {
	ctx := context.Background()
	shards := newSvcShards(t)
	svc := NewAuthService(shards, jwtSecret, time.Hour)
	keyHex, address := testWallet(t)

	nonce, err := svc.IssueNonce(ctx, address)
	if err != nil {
		t.Fatalf("IssueNonce: %v", err)
	}

	// Age the nonce past the verify window.
	stale := time.Now().UTC().Add(-time.Hour)
	if err := shards.DB().
		Exec("UPDATE auth_states SET updated_at = ? WHERE user_address = ?", stale, shard.Key(address)).
		Error; err != nil {
		t.Fatalf("backdate nonce: %v", err)
	}

	if _, err := svc.Verify(ctx, address, signLogin(t, keyHex, nonce)); !errors.Is(err, ErrNoNonce) {
		t.Fatalf("expired nonce verify: got %v, want ErrNoNonce", err)
	}
	// Expiry consumes the nonce; the client must request a fresh one.
	if _, _, err := shards.For(address).Nonce(ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expired nonce should be cleared: %v", err)
	}

	// Re-issue restores the normal flow.
	nonce2, err := svc.IssueNonce(ctx, address)
	if err != nil {
		t.Fatalf("re-issue: %v", err)
	}
	if _, err := svc.Verify(ctx, address, signLogin(t, keyHex, nonce2)); err != nil {
		t.Fatalf("verify after re-issue: %v", err)
	}
}

func TestAuthService_Verify_NoNonceOutstanding(t *testing.T) {
	svc := NewAuthService(newSvcShards(t), jwtSecret, time.Hour)
	keyHex, address := testWallet(t)
	if _, err := svc.Verify(context.Background(), address, signLogin(t, keyHex, "never-issued")); !errors.Is(err, ErrNoNonce) {
		t.Fatalf("got %v, want ErrNoNonce", err)
	}
}

func TestAuthService_Verify_InvalidAddress(t *testing.T) {
	svc := NewAuthService(newSvcShards(t), jwtSecret, time.Hour)
	if _, err := svc.Verify(context.Background(), "bogus", "0x00"); !errors.Is(err, ErrInvalidWallet) {
		t.Fatalf("got %v, want ErrInvalidWallet", err)
	}
}
