package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"vault-betting/internal/models"
)

// DiceSource supplies the two die faces for a roll. The engine treats it
// as an external randomness oracle: implementations may be a VRF bridge,
// a commit-reveal scheme, or the provably-fair roller below.
type DiceSource interface {
	Roll(gameID uint64, wallet string, nonce int64) (models.RollResult, error)
}

// FairDiceSource derives rolls from HMAC-SHA256 over a server seed, so a
// player can verify any past roll once the seed is revealed. The seed
// should be rotated after reveal.
type FairDiceSource struct {
	serverSeed []byte
}

func NewFairDiceSource(serverSeed string) (*FairDiceSource, error) {
	if serverSeed == "" {
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("failed to generate server seed: %w", err)
		}
		return &FairDiceSource{serverSeed: seed}, nil
	}

	seed, err := hex.DecodeString(serverSeed)
	if err != nil {
		return nil, fmt.Errorf("invalid server seed: %w", err)
	}
	return &FairDiceSource{serverSeed: seed}, nil
}

// ServerSeedHash returns the commitment published before any rolls.
func (s *FairDiceSource) ServerSeedHash() string {
	h := sha256.Sum256(s.serverSeed)
	return hex.EncodeToString(h[:])
}

// Roll draws two independent uniform faces in [1,6] from
// HMAC-SHA256(seed, gameID:wallet:nonce). Each die consumes its own half
// of the digest with rejection sampling, so a rejection on one die never
// disturbs the other.
func (s *FairDiceSource) Roll(gameID uint64, wallet string, nonce int64) (models.RollResult, error) {
	msg := fmt.Sprintf("%d:%s:%d", gameID, wallet, nonce)
	mac := hmac.New(sha256.New, s.serverSeed)
	mac.Write([]byte(msg))
	digest := mac.Sum(nil)

	d1 := drawFace(digest[:16])
	d2 := drawFace(digest[16:])

	return models.RollResult{Die1: d1, Die2: d2, Total: d1 + d2}, nil
}

// drawFace maps the first non-rejected byte of a deterministic stream to
// a uniform face in [1,6]. 252 is the largest multiple of 6 below 256;
// when a whole block is rejected the stream is extended by hashing it, so
// the sampler always terminates with an unbiased draw.
func drawFace(seed []byte) uint8 {
	block := seed
	for {
		for _, v := range block {
			if v < 252 {
				return v%6 + 1
			}
		}
		next := sha256.Sum256(block)
		block = next[:]
	}
}

// VerifyRoll recomputes a roll from a revealed seed so players can audit
// past games.
func VerifyRoll(serverSeedHex string, gameID uint64, wallet string, nonce int64) (models.RollResult, error) {
	src, err := NewFairDiceSource(serverSeedHex)
	if err != nil {
		return models.RollResult{}, err
	}
	return src.Roll(gameID, wallet, nonce)
}

// ScriptedDiceSource returns predetermined rolls in order. Used by tests
// that need reproducible outcomes.
type ScriptedDiceSource struct {
	Rolls []models.RollResult
	next  int
}

func (s *ScriptedDiceSource) Roll(uint64, string, int64) (models.RollResult, error) {
	if s.next >= len(s.Rolls) {
		return models.RollResult{}, fmt.Errorf("scripted dice source exhausted after %d rolls", s.next)
	}
	r := s.Rolls[s.next]
	s.next++
	return r, nil
}
