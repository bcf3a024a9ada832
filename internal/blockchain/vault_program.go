package blockchain

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
)

// PDA namespace seeds used by the vault program. Escrow addresses are
// derived from these plus the caller-chosen id, so any party can locate
// an account without an index.
const (
	SeedBet      = "bet"
	SeedGroupBet = "group_bet"
	SeedGame     = "game"
)

// VaultProgram binds the on-chain escrow program: address derivation,
// account decoding and instruction parameter building for the front end.
type VaultProgram struct {
	client    *SolanaClient
	programID solana.PublicKey
}

func NewVaultProgram(client *SolanaClient, programID string) (*VaultProgram, error) {
	pubkey, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID: %w", err)
	}
	return &VaultProgram{client: client, programID: pubkey}, nil
}

func (v *VaultProgram) ProgramID() solana.PublicKey {
	return v.programID
}

func u64LE(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// BetPDA derives the escrow address for a two-party bet.
func (v *VaultProgram) BetPDA(betID uint64) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{[]byte(SeedBet), u64LE(betID)}
	pda, bump, err := solana.FindProgramAddress(seeds, v.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive bet PDA: %w", err)
	}
	return pda, bump, nil
}

// GroupBetPDA derives the address of one bettor's side bet on a parent bet.
func (v *VaultProgram) GroupBetPDA(betID uint64, bettor string) (solana.PublicKey, uint8, error) {
	bettorKey, err := solana.PublicKeyFromBase58(bettor)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("invalid bettor address: %w", err)
	}

	seeds := [][]byte{[]byte(SeedGroupBet), u64LE(betID), bettorKey.Bytes()}
	pda, bump, err := solana.FindProgramAddress(seeds, v.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive group bet PDA: %w", err)
	}
	return pda, bump, nil
}

// GamePDA derives the escrow address for a multi-party dice game.
func (v *VaultProgram) GamePDA(gameID uint64) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{[]byte(SeedGame), u64LE(gameID)}
	pda, bump, err := solana.FindProgramAddress(seeds, v.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive game PDA: %w", err)
	}
	return pda, bump, nil
}

// BetAddress is BetPDA with the address rendered as base58, for callers
// that store addresses as strings.
func (v *VaultProgram) BetAddress(betID uint64) (string, uint8, error) {
	pda, bump, err := v.BetPDA(betID)
	if err != nil {
		return "", 0, err
	}
	return pda.String(), bump, nil
}

// GroupBetAddress is GroupBetPDA rendered as base58.
func (v *VaultProgram) GroupBetAddress(betID uint64, bettor string) (string, uint8, error) {
	pda, bump, err := v.GroupBetPDA(betID, bettor)
	if err != nil {
		return "", 0, err
	}
	return pda.String(), bump, nil
}

// GameAddress is GamePDA rendered as base58.
func (v *VaultProgram) GameAddress(gameID uint64) (string, uint8, error) {
	pda, bump, err := v.GamePDA(gameID)
	if err != nil {
		return "", 0, err
	}
	return pda.String(), bump, nil
}

// DepositInstruction returns the parameters the front end needs to build
// the transfer funding a bet's escrow.
func (v *VaultProgram) DepositInstruction(betID uint64, depositor string, amount uint64) (map[string]interface{}, error) {
	pda, _, err := v.BetPDA(betID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"programId":   v.programID.String(),
		"instruction": "deposit_bet_funds",
		"betId":       betID,
		"amount":      amount,
		"accounts": map[string]string{
			"betAccount": pda.String(),
			"depositor":  depositor,
		},
	}, nil
}

// JoinGameInstruction returns the parameters for the atomic fund+join
// transfer into a game's escrow.
func (v *VaultProgram) JoinGameInstruction(gameID uint64, player string, entryFee uint64) (map[string]interface{}, error) {
	pda, _, err := v.GamePDA(gameID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"programId":   v.programID.String(),
		"instruction": "join_game",
		"gameId":      gameID,
		"amount":      entryFee,
		"accounts": map[string]string{
			"gameAccount": pda.String(),
			"player":      player,
		},
	}, nil
}

// VerifyEscrowDeposit checks that the given signature is a confirmed
// transfer of exactly amount lamports from wallet into the escrow
// address. Returns false while the transaction is still pending.
func (v *VaultProgram) VerifyEscrowDeposit(
	ctx context.Context,
	signature string,
	wallet string,
	escrowAddress string,
	amount uint64,
) (bool, error) {
	details, err := v.client.GetTransfer(ctx, signature)
	if err != nil {
		return false, err
	}
	if details == nil || !details.Confirmed {
		return false, nil
	}

	if !transferMatches(details, wallet, escrowAddress, amount) {
		log.Printf("[VaultProgram] Deposit %s rejected: sender %q receiver %q amount %d, want %s -> %s >= %d",
			signature, details.Sender, details.Receiver, details.Amount, wallet, escrowAddress, amount)
		return false, nil
	}

	return true, nil
}

// transferMatches requires positive proof on every field before a deposit
// is credited. A transfer whose sender, receiver or amount could not be
// extracted is rejected, never waved through.
func transferMatches(details *TransferDetails, wallet, escrowAddress string, amount uint64) bool {
	if details.Sender == "" || details.Receiver == "" || details.Amount == 0 {
		return false
	}
	return details.Sender == wallet &&
		details.Receiver == escrowAddress &&
		details.Amount >= amount
}

// OnChainBet mirrors the on-chain BetAccount layout.
type OnChainBet struct {
	BetID           uint64
	ParticipantA    solana.PublicKey
	ParticipantB    solana.PublicKey
	Arbiter         solana.PublicKey
	BetAmount       uint64
	ADeposited      bool
	BDeposited      bool
	TotalPool       uint64
	Status          uint8
	Winner          *solana.PublicKey
	CreatedAt       int64
	ActivatedAt     *int64
	MinDecisionTime int64
	Bump            uint8
}

// GetOnChainBet fetches and decodes the bet account at its PDA.
func (v *VaultProgram) GetOnChainBet(ctx context.Context, betID uint64) (*OnChainBet, error) {
	pda, _, err := v.BetPDA(betID)
	if err != nil {
		return nil, err
	}

	info, err := v.client.rpcClient.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bet account: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("bet account not found")
	}

	return decodeBetAccount(info.Value.Data.GetBinary())
}

func decodeBetAccount(data []byte) (*OnChainBet, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("invalid bet account data length")
	}
	data = data[8:] // skip discriminator

	const minLen = 8 + 32*3 + 8 + 1 + 1 + 8 + 1 + 33 + 8 + 9 + 8 + 1
	if len(data) < minLen {
		return nil, fmt.Errorf("insufficient bet account data")
	}

	bet := &OnChainBet{}
	offset := 0

	bet.BetID = binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	bet.ParticipantA = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32
	bet.ParticipantB = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32
	bet.Arbiter = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	bet.BetAmount = binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	bet.ADeposited = data[offset] == 1
	offset++
	bet.BDeposited = data[offset] == 1
	offset++

	bet.TotalPool = binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	bet.Status = data[offset]
	offset++

	// winner: Option<Pubkey>
	if data[offset] == 1 {
		winner := solana.PublicKeyFromBytes(data[offset+1 : offset+33])
		bet.Winner = &winner
	}
	offset += 33

	bet.CreatedAt = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8

	// activated_at: Option<i64>
	if data[offset] == 1 {
		activatedAt := int64(binary.LittleEndian.Uint64(data[offset+1:]))
		bet.ActivatedAt = &activatedAt
	}
	offset += 9

	bet.MinDecisionTime = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8

	bet.Bump = data[offset]

	return bet, nil
}
