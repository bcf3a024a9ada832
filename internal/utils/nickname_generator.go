package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"Lucky", "Swift", "Bold", "Sly", "Mighty",
	"Quiet", "Wild", "Golden", "Iron", "Crimson",
	"Frost", "Storm", "Shadow", "Blazing", "Steel",
}

var nouns = []string{
	"Roller", "Gambit", "Ace", "Shark", "Dealer",
	"Falcon", "Wolf", "Raven", "Viper", "Jackal",
	"Stakes", "Wager", "Dice", "Arbiter", "Vault",
}

// GenerateNickname creates a random handle in the format "Adjective_Noun_XXXX".
func GenerateNickname() (string, error) {
	adjIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(adjectives))))
	if err != nil {
		return "", fmt.Errorf("failed to pick adjective: %w", err)
	}

	nounIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(nouns))))
	if err != nil {
		return "", fmt.Errorf("failed to pick noun: %w", err)
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to pick suffix: %w", err)
	}

	return fmt.Sprintf("%s_%s_%04d",
		adjectives[adjIdx.Int64()],
		nouns[nounIdx.Int64()],
		suffix.Int64(),
	), nil
}
