// Command createadmin seeds the admin account from ADMIN_NAME, ADMIN_EMAIL
// and ADMIN_PASSWORD. It does nothing if the email is already registered.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/config"
	"github.com/markjakearzadon/realestate-gobackend/internal/db"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(log); err != nil {
		log.Errorf("createadmin: %v", err)
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg, err := config.Load()
	var envErr *config.EnvFileError
	if err != nil && !errors.As(err, &envErr) {
		return err
	}

	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	users := services.NewUserService(client.Database(cfg.DBName), log)
	if _, err := users.GetByEmail(ctx, email); err == nil {
		log.Infof("Admin %s already exists", email)
		return nil
	} else if !errors.Is(err, services.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		Name:       name,
		Email:      email,
		HPassword:  hash,
		Role:       models.RoleAdmin,
		IsApproved: true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	log.Infof("Admin %s created with id %s", email, admin.ID.Hex())
	return nil
}
