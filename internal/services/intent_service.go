// Package services – IntentService
//
// Wraps the opaque NL parser: runs the utterance through it, resolves the
// spoken payee name against the user's address book, validates the result,
// and fills defaults. No persistence happens here; a confirmed recurring
// intent goes through ScheduleService.Create.
package services

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voicepay/go-voicepay-backend/internal/nlp"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// IntentService turns raw text into a canonical, recipient-resolved intent.
type IntentService struct {
	Shards *shard.Manager
	Parser nlp.Parser

	// Now is a clock seam for the start-date default; defaults to time.Now.
	Now func() time.Time
}

// NewIntentService constructs an IntentService around the given parser.
func NewIntentService(shards *shard.Manager, parser nlp.Parser) *IntentService {
	return &IntentService{Shards: shards, Parser: parser, Now: time.Now}
}

// Parse produces the canonical intent for an utterance. Error mapping:
//   - *shard.AmbiguousError when the payee name matches several recipients;
//   - ErrRecipientMissing when it matches none;
//   - ErrInvalidIntent when the parse lacks an intent kind, a positive
//     amount, or any payee at all.
func (s *IntentService) Parse(ctx context.Context, userAddr, text string) (*nlp.ParsedIntent, error) {
	tr := otel.Tracer("services/IntentService")
	ctx, span := tr.Start(ctx, "Parse",
		trace.WithAttributes(attribute.String("user.address", shard.Key(userAddr))),
	)
	defer span.End()

	intent, err := s.Parser.Parse(ctx, text)
	if err != nil {
		return nil, err
	}
	if intent.Intent == "" || intent.Amount.Sign() <= 0 {
		return nil, ErrInvalidIntent
	}

	if intent.Address == "" {
		if intent.Name == "" {
			return nil, ErrInvalidIntent
		}
		res, err := s.Shards.For(userAddr).ResolveByName(ctx, intent.Name)
		if err != nil {
			if err == shard.ErrNoMatch {
				return nil, ErrRecipientMissing
			}
			return nil, err
		}
		intent.Address = res.Match.Wallet
		// The spoken name may be partial or miscased; surface the address
		// book's canonical spelling.
		intent.Name = res.Match.Name
	}
	if !common.IsHexAddress(intent.Address) {
		return nil, ErrInvalidIntent
	}
	intent.Address = shard.Key(intent.Address)

	if intent.Currency == "" {
		intent.Currency = "USDC"
	}
	if intent.StartDate == "" {
		now := s.Now
		if now == nil {
			now = time.Now
		}
		intent.StartDate = now().UTC().Format("2006-01-02")
	}
	return intent, nil
}
