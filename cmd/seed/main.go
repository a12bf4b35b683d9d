// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev municipality already exists.
// Prints the municipality's plaintext API key and the validators' private
// keys once, on first run.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"chain-audit/backend/internal/config"
	"chain-audit/backend/internal/db"
	munidomain "chain-audit/backend/internal/municipality/domain"
	munirepo "chain-audit/backend/internal/municipality/repository"
	"chain-audit/backend/internal/security"
	validatordomain "chain-audit/backend/internal/validator/domain"
	validatorrepo "chain-audit/backend/internal/validator/repository"
)

const (
	devMunicipalityID = "dev-municipality-001"
	devValidatorID    = "dev-validator-001"
	devValidator2ID   = "dev-validator-002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	municipalities := munirepo.NewPostgresRepository(conn)
	validators := validatorrepo.NewPostgresRepository(conn)

	existing, err := municipalities.GetByID(ctx, devMunicipalityID)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev data already present, nothing to do")
		return
	}

	muniPriv, muniWallet, err := security.NewTestWallet()
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	apiKey, err := security.NewAPIKey()
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := municipalities.Create(ctx, &munidomain.Municipality{
		ID:         devMunicipalityID,
		Name:       "Municipio de Prueba",
		Wallet:     muniWallet,
		APIKeyHash: security.HashAPIKey(apiKey),
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Fatalf("seed: municipality: %v", err)
	}

	fmt.Println("seed: municipality created")
	fmt.Printf("  id:         %s\n", devMunicipalityID)
	fmt.Printf("  wallet:     %s\n", muniWallet)
	fmt.Printf("  wallet key: %s\n", hex.EncodeToString(muniPriv.Serialize()))
	fmt.Printf("  api key:    %s  (shown once, store it now)\n", apiKey)

	for _, v := range []struct {
		id, name string
	}{
		{devValidatorID, "Contraloría Departamental"},
		{devValidator2ID, "Observatorio Ciudadano"},
	} {
		priv, wallet, err := security.NewTestWallet()
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		if err := validators.Create(ctx, &validatordomain.Validator{
			ID:     v.id,
			Name:   v.name,
			Wallet: wallet,
			Active: true,
		}); err != nil {
			log.Fatalf("seed: validator %s: %v", v.id, err)
		}
		fmt.Printf("seed: validator %s (%s)\n", v.id, v.name)
		fmt.Printf("  wallet:     %s\n", wallet)
		fmt.Printf("  wallet key: %s\n", hex.EncodeToString(priv.Serialize()))
	}
}
