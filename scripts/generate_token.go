package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/domain"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Define command line flags
	userID := flag.String("user", "", "Principal ID for the token")
	roles := flag.String("roles", domain.RoleSuperAdmin, "Comma-separated list of roles; the first is the acting role")
	expirationHours := flag.Int("exp", 24, "Access token expiration in hours")
	tenantID := flag.String("tenant", "", "Tenant ID; empty issues a platform token")
	slug := flag.String("slug", "", "Tenant slug, required with -tenant")
	flag.Parse()

	if *userID == "" {
		log.Fatal("User ID is required")
	}

	rolesList := strings.Split(*roles, ",")
	principal := &domain.Principal{ID: *userID, Roles: rolesList}
	tc := domain.PlatformContext()

	if *tenantID != "" {
		if *slug == "" {
			log.Fatal("Tenant slug is required for tenant tokens")
		}
		principal.TenantID = tenantID
		tc = domain.NewTenantContext(&domain.Tenant{
			ID:         *tenantID,
			Slug:       *slug,
			SchemaName: domain.SchemaNameForSlug(*slug),
		}, domain.TenantSourceHeader)
	}

	ttl := time.Duration(*expirationHours) * time.Hour
	tokens := auth.NewTokenService(getEnvOrDefault("JWT_SECRET_KEY", "your-default-secret-key"), ttl, 7*24*time.Hour, nil)

	pair, err := tokens.Issue(context.Background(), principal, tc, rolesList[0])
	if err != nil {
		log.Fatalf("Error issuing token: %v", err)
	}

	fmt.Printf("Generated JWT Token:\n%s\n\nRefresh Token:\n%s\n", pair.AccessToken, pair.RefreshToken)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
