package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/supplierhub/supplierhub/internal/app"
	"github.com/supplierhub/supplierhub/internal/suppliers"
)

type demoSupplier struct {
	mode     suppliers.RegistrationMode
	form     suppliers.RegistrationForm
	username string
	password string
}

var demoSuppliers = []demoSupplier{
	{
		mode: suppliers.ModeStrict,
		form: suppliers.RegistrationForm{
			CompanyName:     "Tech Solutions Ltd",
			Email:           "sales@techsolutions.example",
			ContactPerson:   "Priya Shah",
			Phone:           "+44 20 7946 0958",
			Address:         "12 Market Street, London",
			Country:         "UK",
			Industry:        "Technology",
			Certifications:  []string{"ISO 9001", "ISO 27001"},
			CompanySize:     "medium",
			YearsInBusiness: "12",
			TurnoverTime:    "30",
			Description:     "Managed IT services and hardware supply.",
			AgreeToTerms:    true,
		},
		username: "techsol",
		password: "demo-password",
	},
	{
		mode: suppliers.ModeInvite,
		form: suppliers.RegistrationForm{
			CompanyName:     "Nordic Timber AB",
			Email:           "orders@nordictimber.example",
			ContactPerson:   "Lars Berg",
			Phone:           "+46 8 123 456",
			Address:         "Skogsvagen 4, Uppsala",
			Country:         "Sweden",
			Industry:        "Construction",
			Certifications:  []string{"ISO 14001"},
			CompanySize:     "large",
			YearsInBusiness: "25",
			TurnoverTime:    "45",
			Description:     "Certified sustainable timber.",
			AgreeToTerms:    true,
			InviteCode:      suppliers.DefaultInviteCode,
		},
	},
	{
		mode: suppliers.ModeMinimal,
		form: suppliers.RegistrationForm{
			CompanyName:     "QuickParts Trading",
			Email:           "hello@quickparts.example",
			ContactPerson:   "Sam Okafor",
			Country:         "Nigeria",
			Industry:        "Manufacturing",
			CompanySize:     "small",
			YearsInBusiness: "1",
			TurnoverTime:    "120",
			DelayHistory:    "frequent",
			AgreeToTerms:    true,
		},
	},
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open backend: %v", err)
	}
	defer backend.Close()

	store, err := suppliers.OpenStore(ctx, backend.Persistence)
	if errors.Is(err, suppliers.ErrStoreInUse) {
		log.Fatalf("open store: %v (stop the API server before seeding a %s backend)", err, backend.Kind)
	}
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Printf("release store: %v", err)
		}
	}()
	service := suppliers.NewService(store, suppliers.ServiceConfig{
		Logger:     logger,
		Pending:    backend.Pending,
		InviteCode: cfg.InviteCode,
	})

	fmt.Printf("→ Seeding suppliers into %s backend...\n", backend.Kind)
	for _, demo := range demoSuppliers {
		if _, err := store.FindByCompanyName(ctx, demo.form.CompanyName); err == nil {
			fmt.Printf("  skip %s (exists)\n", demo.form.CompanyName)
			continue
		} else if !errors.Is(err, suppliers.ErrNotFound) {
			log.Fatalf("lookup %s: %v", demo.form.CompanyName, err)
		}

		if demo.mode == suppliers.ModeInvite {
			demo.form.InviteCode = cfg.InviteCode
		}
		reg, err := service.Register(ctx, demo.mode, demo.form)
		if err != nil {
			log.Fatalf("register %s: %v", demo.form.CompanyName, err)
		}
		if demo.username != "" && reg.PendingToken != "" {
			if _, err := service.CreateLogin(ctx, reg.PendingToken, demo.username, demo.password); err != nil {
				log.Fatalf("create login for %s: %v", demo.form.CompanyName, err)
			}
		}
		fmt.Printf("  %s: score %d (%s)\n", reg.Supplier.CompanyName, reg.Supplier.RiskScore, reg.Supplier.RiskCategory)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}
