package blockchain

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// SolanaClient wraps the RPC connection to the host ledger. The engine
// uses it to verify deposit transfers and to read balances; it never
// trusts client-supplied amounts or timestamps.
type SolanaClient struct {
	rpcClient    *rpc.Client
	network      string
	serverWallet *solana.Wallet
	httpClient   *http.Client
}

// NewSolanaClient creates a client for the given network. The server
// wallet signs settlement transactions when a private key is configured.
func NewSolanaClient(network, privateKey string) *SolanaClient {
	var rpcURL string
	switch network {
	case "mainnet-beta":
		rpcURL = "https://api.mainnet-beta.solana.com"
	case "devnet":
		rpcURL = "https://api.devnet.solana.com"
	case "testnet":
		rpcURL = "https://api.testnet.solana.com"
	default:
		rpcURL = "https://api.devnet.solana.com"
	}

	client := &SolanaClient{
		rpcClient: rpc.New(rpcURL),
		network:   network,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	if privateKey != "" {
		wallet, err := solana.WalletFromPrivateKeyBase58(privateKey)
		if err != nil {
			log.Printf("Warning: failed to load server wallet: %v", err)
		} else {
			client.serverWallet = wallet
			log.Printf("Server wallet loaded: %s", wallet.PublicKey())
		}
	}

	return client
}

// ValidateWalletAddress checks a base58 Solana address.
func (s *SolanaClient) ValidateWalletAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// GetSOLBalance returns a wallet's SOL balance.
func (s *SolanaClient) GetSOLBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	pubKey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.rpcClient.GetBalance(ctx, pubKey, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromInt(int64(balance.Value)).Div(decimal.NewFromInt(1_000_000_000)), nil
}

// TransferDetails holds the parsed content of a confirmed SOL transfer.
type TransferDetails struct {
	Signature string
	Sender    string
	Receiver  string
	Amount    uint64 // lamports
	Confirmed bool
}

// GetTransfer verifies that a transaction is confirmed and extracts the
// sender, receiver and net lamport movement. Returns (nil, nil) while
// the transaction is still pending, so callers can poll.
func (s *SolanaClient) GetTransfer(ctx context.Context, signature string) (*TransferDetails, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	status, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, err
	}

	if len(status.Value) == 0 || status.Value[0] == nil {
		return nil, nil // not found yet
	}

	if status.Value[0].Err != nil {
		log.Printf("Transaction %s failed on chain: %v", signature, status.Value[0].Err)
		return nil, fmt.Errorf("transaction execution failed")
	}

	confStatus := status.Value[0].ConfirmationStatus
	if confStatus != rpc.ConfirmationStatusConfirmed && confStatus != rpc.ConfirmationStatusFinalized {
		return nil, nil // not confirmed yet
	}

	tx, err := s.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction details: %w", err)
	}

	transaction, err := tx.Transaction.GetTransaction()
	if err != nil {
		// A transfer we cannot decode is a transfer we cannot credit.
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}

	if len(transaction.Message.AccountKeys) < 2 {
		return nil, fmt.Errorf("transaction %s has no transfer accounts", signature)
	}

	// Net movement to the receiver, taken from the balance deltas rather
	// than instruction data, so wrapped transfers are still accounted.
	sender := transaction.Message.AccountKeys[0].String()
	receiver := transaction.Message.AccountKeys[1].String()

	var amount uint64
	if len(tx.Meta.PreBalances) > 1 && len(tx.Meta.PostBalances) > 1 {
		pre := tx.Meta.PreBalances[1]
		post := tx.Meta.PostBalances[1]
		if post > pre {
			amount = post - pre
		}
	}

	return &TransferDetails{
		Signature: signature,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Confirmed: true,
	}, nil
}

// SendTransaction submits a signed transaction.
func (s *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := s.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// GetRecentBlockhash gets the latest blockhash for transaction building.
func (s *SolanaClient) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	resp, err := s.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return resp.Value.Blockhash, nil
}

// ServerWallet returns the settlement authority wallet, or nil when the
// engine runs in verification-only mode.
func (s *SolanaClient) ServerWallet() *solana.Wallet {
	return s.serverWallet
}
