package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/logger"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/service"
	"golang.org/x/term"
)

// mint-token signs a bearer token for local use and operator tasks. Production
// tokens come from the identity provider sharing JWT_SECRET.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Mint Access Token ===")

	fmt.Print("Token type (student/admin, default student): ")
	kind, _ := reader.ReadString('\n')
	tokenType := service.TokenTypeStudent
	switch strings.TrimSpace(kind) {
	case "", "student":
	case "admin":
		tokenType = service.TokenTypeAdmin
	default:
		fmt.Println("Error: token type must be student or admin")
		return
	}

	fmt.Print("User ID: ")
	userID, _ := reader.ReadString('\n')
	userID = strings.TrimSpace(userID)
	if userID == "" {
		fmt.Println("Error: User ID is required")
		return
	}

	var permissions []string
	if tokenType == service.TokenTypeAdmin {
		fmt.Print("Permissions (comma separated, empty for all): ")
		raw, _ := reader.ReadString('\n')
		permissions = parsePermissions(raw)
		if permissions == nil {
			fmt.Println("Error: unknown permission")
			return
		}
	}

	secret := cfg.JWTSecret
	if secret == "" {
		fmt.Print("JWT secret: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Println("Error reading secret")
			return
		}
		secret = string(b)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	token, err := service.NewAuthService(secret, cfg.JWTExpiry).Mint(tokenType, userID, permissions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to mint token")
	}

	fmt.Printf("\n%s\n", token)
}

// parsePermissions returns nil when any entry is unknown.
func parsePermissions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		all := make([]string, len(model.AllPermissions))
		for i, p := range model.AllPermissions {
			all[i] = string(p)
		}
		return all
	}

	known := make(map[string]bool, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		known[string(p)] = true
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !known[p] {
			return nil
		}
		out = append(out, p)
	}
	return out
}
