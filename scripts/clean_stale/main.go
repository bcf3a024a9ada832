package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Removes terminal bet and game rows older than 90 days, keeping their
// escrow ledger entries for audit.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	result, err := db.Exec(`
		DELETE FROM group_bet_accounts
		WHERE bet_id IN (
			SELECT bet_id FROM bet_accounts
			WHERE status IN ('REFUNDED', 'CANCELLED')
			AND created_at < NOW() - INTERVAL '90 days'
		)
	`)
	if err != nil {
		log.Printf("Warning deleting group_bet_accounts: %v", err)
	} else {
		rows, _ := result.RowsAffected()
		fmt.Printf("Deleted %d stale group bets\n", rows)
	}

	result, err = db.Exec(`
		DELETE FROM bet_accounts
		WHERE status IN ('REFUNDED', 'CANCELLED')
		AND created_at < NOW() - INTERVAL '90 days'
	`)
	if err != nil {
		log.Fatalf("Failed to delete bets: %v", err)
	}
	rows, _ := result.RowsAffected()
	fmt.Printf("Deleted %d stale bets\n", rows)

	result, err = db.Exec(`
		DELETE FROM game_players
		WHERE game_id IN (
			SELECT game_id FROM game_accounts
			WHERE status = 'CANCELLED'
			AND created_at < NOW() - INTERVAL '90 days'
		)
	`)
	if err != nil {
		log.Printf("Warning deleting game_players: %v", err)
	} else {
		rows, _ = result.RowsAffected()
		fmt.Printf("Deleted %d stale game seats\n", rows)
	}

	result, err = db.Exec(`
		DELETE FROM game_accounts
		WHERE status = 'CANCELLED'
		AND created_at < NOW() - INTERVAL '90 days'
	`)
	if err != nil {
		log.Fatalf("Failed to delete games: %v", err)
	}
	rows, _ = result.RowsAffected()
	fmt.Printf("Deleted %d stale games\n", rows)

	var count int
	db.QueryRow("SELECT COUNT(*) FROM bet_accounts").Scan(&count)
	fmt.Printf("\nRemaining bets: %d\n", count)
	db.QueryRow("SELECT COUNT(*) FROM game_accounts").Scan(&count)
	fmt.Printf("Remaining games: %d\n", count)

	fmt.Println("\nCleanup complete")
}
