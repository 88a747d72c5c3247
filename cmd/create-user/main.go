package main

import (
	"bufio"
	"case_portal_go/config"
	"case_portal_go/db"
	"case_portal_go/models"
	"case_portal_go/services"
	"case_portal_go/services/policy"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

func main() {
	role := flag.String("role", "admin", "account to create: admin or handler")
	flag.Parse()
	if *role != "admin" && *role != "handler" {
		log.Fatalf("Unknown role %q (use admin or handler)", *role)
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(db.Options{
		Path:        cfg.DBPath,
		TursoURL:    cfg.TursoDatabaseURL,
		TursoToken:  cfg.TursoAuthToken,
		Environment: "production",
	}); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.User{}, &models.Group{}, &models.Session{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("=== Create %s account ===\n\n", *role)

	fmt.Print("Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Print("Email (optional): ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	phone := ""
	if *role == "handler" {
		fmt.Print("Phone number (for WhatsApp notices): ")
		phone, _ = reader.ReadString('\n')
		phone = strings.TrimSpace(phone)
	}

	// Get password securely
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	fmt.Println()

	if string(passwordBytes) != string(confirmBytes) {
		log.Fatal("Passwords do not match")
	}

	accounts := services.NewAccountService(db.DB, nil)
	in := services.NewAccount{
		Username:    username,
		Email:       email,
		Password:    string(passwordBytes),
		PhoneNumber: phone,
	}

	ctx := context.Background()
	var user *models.User
	if *role == "admin" {
		user, err = accounts.CreateSuperuser(ctx, in)
	} else {
		// The CLI acts with administrator authority
		user, err = accounts.AddHandler(ctx, policy.Principal{Caps: policy.CapAdmin}, in)
	}
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Println()
	fmt.Println("✓ Account created successfully!")
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Role: %s\n", policy.DisplayRole(policy.Resolve(user)))
	fmt.Println()
	fmt.Printf("Sign in with POST %s/api/login\n", cfg.AppURL)
}
