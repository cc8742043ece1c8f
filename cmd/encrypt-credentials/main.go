// Command encrypt-credentials encrypts plaintext provider tokens already
// stored in the database, for deployments that started without an
// encryption key.
//
// Usage:
//
//	go run ./cmd/encrypt-credentials -db "postgres://..." -key "your-hex-key"
//
// Or using environment variables:
//
//	DATABASE_URL="postgres://..." ENCRYPTION_KEY="your-hex-key" go run ./cmd/encrypt-credentials
//
// Generate a fresh key with -generate-key.
package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/leekyio/api/pkg/crypto"
)

func main() {
	dbURL := flag.String("db", "", "Database URL (or set DATABASE_URL env)")
	encryptionKey := flag.String("key", "", "Encryption key in hex (or set ENCRYPTION_KEY env)")
	dryRun := flag.Bool("dry-run", false, "Show what would be encrypted without making changes")
	generateKey := flag.Bool("generate-key", false, "Print a new encryption key and exit")
	flag.Parse()

	if *generateKey {
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Printf("Error generating key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	databaseURL := *dbURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		fmt.Println("Error: Database URL required. Use -db flag or set DATABASE_URL env")
		os.Exit(1)
	}

	keyStr := *encryptionKey
	if keyStr == "" {
		keyStr = os.Getenv("ENCRYPTION_KEY")
	}
	if keyStr == "" {
		fmt.Println("Error: Encryption key required. Use -key flag or set ENCRYPTION_KEY env")
		fmt.Println("Generate a key with: go run ./cmd/encrypt-credentials -generate-key")
		os.Exit(1)
	}

	cipher, err := crypto.NewCipherFromHex(keyStr)
	if err != nil {
		fmt.Printf("Error creating cipher: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("Error pinging database: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Connected to database")

	if *dryRun {
		fmt.Println("\n=== DRY RUN MODE - No changes will be made ===")
	}

	count, err := encryptCredentials(ctx, db, cipher, *dryRun)
	if err != nil {
		fmt.Printf("Error encrypting credentials: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nCredentials encrypted: %d\n", count)
	if *dryRun {
		fmt.Println("Dry run complete. Run without -dry-run to apply changes.")
	}
}

func encryptCredentials(ctx context.Context, db *sql.DB, cipher *crypto.Cipher, dryRun bool) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, encrypted_token
		FROM user_credentials
		WHERE encrypted_token IS NOT NULL AND encrypted_token != ''
	`)
	if err != nil {
		return 0, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	type row struct {
		id    string
		token string
	}
	var toEncrypt []row

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.token); err != nil {
			return 0, fmt.Errorf("scan row: %w", err)
		}
		if !isEncrypted(r.token) {
			toEncrypt = append(toEncrypt, r)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate rows: %w", err)
	}

	fmt.Printf("Found %d plaintext credential(s)\n", len(toEncrypt))

	count := 0
	for _, r := range toEncrypt {
		if dryRun {
			fmt.Printf("  would encrypt credential %s\n", r.id)
			count++
			continue
		}

		encrypted, err := cipher.EncryptString(r.token)
		if err != nil {
			return count, fmt.Errorf("encrypt credential %s: %w", r.id, err)
		}

		_, err = db.ExecContext(ctx, `
			UPDATE user_credentials
			SET encrypted_token = $1, updated_at = NOW()
			WHERE id = $2
		`, encrypted, r.id)
		if err != nil {
			return count, fmt.Errorf("update credential %s: %w", r.id, err)
		}

		fmt.Printf("  encrypted credential %s\n", r.id)
		count++
	}

	return count, nil
}

// isEncrypted reports whether a stored value already looks like cipher
// output (base64 of nonce + ciphertext + tag) rather than a raw token.
func isEncrypted(value string) bool {
	if value == "" {
		return true
	}

	// Known provider token prefixes are definitely plaintext.
	plaintextPrefixes := []string{"ghp_", "gho_", "ghs_", "ghr_", "github_pat_"}
	for _, prefix := range plaintextPrefixes {
		if strings.HasPrefix(value, prefix) {
			return false
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}

	// Nonce (12) + at least one byte + GCM tag (16).
	return len(decoded) >= 29
}
