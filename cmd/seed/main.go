// seed creates the initial administrator account. Idempotent: an existing login id is
// left untouched.
//
// The password comes from -password or SEED_ADMIN_PASSWORD and must satisfy the password
// policy. The account is created with must-change-password set.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit"
	auditdomain "dfp-neo/backend/internal/audit/domain"
	auditrepo "dfp-neo/backend/internal/audit/repository"
	"dfp-neo/backend/internal/config"
	"dfp-neo/backend/internal/db"
	"dfp-neo/backend/internal/logger"
	"dfp-neo/backend/internal/security"
	userdomain "dfp-neo/backend/internal/user/domain"
	userrepo "dfp-neo/backend/internal/user/repository"
)

type account struct {
	LoginID   string
	Email     string
	FirstName string
	LastName  string
	Role      userdomain.Role
	Password  string
}

func main() {
	loginID := flag.String("login", "superadmin", "Login id of the administrator")
	email := flag.String("email", "", "E-mail for password reset links")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "Initial password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json", "dfp-neo-seed")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, "dfp-neo-seed")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	rec := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil, log)
	created, err := seedAccount(ctx, userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), rec, account{
		LoginID:   *loginID,
		Email:     *email,
		FirstName: "Super",
		LastName:  "Admin",
		Role:      userdomain.RoleSuperAdmin,
		Password:  *password,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed")
	}
	if !created {
		log.Info().Str("login_id", *loginID).Msg("account already exists; skipping")
		return
	}
	log.Info().Str("login_id", *loginID).Msg("account created; password change required at first sign-in")
}

// seedAccount creates a unless its login id is taken. It reports whether it created it.
func seedAccount(ctx context.Context, users userrepo.Repository, hasher *security.Hasher, rec audit.Recorder, a account, log zerolog.Logger) (bool, error) {
	existing, err := users.GetByLogin(ctx, a.LoginID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := security.ValidatePassword(a.Password); err != nil {
		return false, err
	}
	hash, err := hasher.Hash([]byte(a.Password))
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:                 uuid.New().String(),
		LoginID:            a.LoginID,
		Username:           a.LoginID,
		Email:              a.Email,
		Role:               a.Role,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		DisplayName:        strings.TrimSpace(a.FirstName + " " + a.LastName),
		PasswordHash:       hash,
		MustChangePassword: true,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := users.Create(ctx, u); err != nil {
		return false, err
	}
	rec.Record(ctx, auditdomain.Event{
		ActorUserID:  u.ID,
		Action:       auditdomain.ActionCreateUser,
		TargetUserID: u.ID,
		IPAddress:    "seed",
		Metadata:     map[string]any{"role": string(u.Role), "login_id": u.LoginID},
	})
	log.Debug().Str("user_id", u.ID).Msg("user created")
	return true, nil
}
