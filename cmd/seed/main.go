package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"neokatalyst/backend/internal/config"
	"neokatalyst/backend/internal/logging"
	"neokatalyst/backend/internal/repository"
	"neokatalyst/backend/internal/services"
	"neokatalyst/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool, logger)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// 1. Ensure Tenant Exists
	domain := "localhost"
	tenant, err := store.GetTenantByDomain(ctx, domain)
	if err != nil {
		logger.Info("Creating default tenant", "domain", domain)
		tenant = &models.Tenant{
			Name:   "Local Dev Tenant",
			Domain: domain,
		}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			log.Fatalf("Failed to create tenant: %v", err)
		}
	} else {
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	seeder := &models.Identity{
		Subject: "seed-script",
		Email:   "seed@" + domain,
		Roles:   []string{models.RoleAdmin},
	}
	workflowService := services.NewWorkflowService(store, logger)

	// 2. Check for existing workflows to prevent duplicates
	existingWorkflows, err := workflowService.ListWorkflows(ctx, tenant.ID, "")
	if err != nil {
		log.Fatalf("Failed to list existing workflows: %v", err)
	}

	existingMap := make(map[string]bool)
	for _, w := range existingWorkflows {
		existingMap[w.Name] = true
	}

	// 3. Create Seed Workflows
	desc := func(s string) *string { return &s }
	workflows := []struct {
		Input    services.DefineWorkflowInput
		Activate bool
	}{
		{
			Input: services.DefineWorkflowInput{
				Name:        "Invoice Approval",
				Description: desc("Two-stage review for incoming invoices."),
				Steps: []services.StepInput{
					{Name: "Finance Review", RequiredApprovals: 2, Order: 1},
					{Name: "Manager Sign-off", RequiredApprovals: 1, Order: 2},
				},
			},
			Activate: true,
		},
		{
			Input: services.DefineWorkflowInput{
				Name:        "Employee Onboarding",
				Description: desc("Checklist for setting up a new hire."),
				Steps: []services.StepInput{
					{Name: "Provision Accounts", RequiredApprovals: 1, Order: 1},
					{Name: "Assign Equipment", RequiredApprovals: 1, Order: 2},
					{Name: "Orientation", RequiredApprovals: 1, Order: 3},
				},
			},
		},
	}

	for _, w := range workflows {
		if existingMap[w.Input.Name] {
			logger.Info("Skipping existing workflow", "name", w.Input.Name)
			continue
		}

		wf, err := workflowService.DefineWorkflow(ctx, tenant.ID, seeder, w.Input)
		if err != nil {
			log.Printf("Failed to create workflow %s: %v", w.Input.Name, err)
			continue
		}
		logger.Info("Seeded workflow", "name", wf.Name, "id", wf.ID)

		if !w.Activate {
			continue
		}
		if _, err := workflowService.ActivateWorkflow(ctx, tenant.ID, wf.ID, seeder); err != nil {
			log.Printf("Failed to activate workflow %s: %v", wf.Name, err)
			continue
		}

		// seed one pending task against the first step so the dashboard has data
		_, err = workflowService.CreateTask(ctx, tenant.ID, services.CreateTaskInput{
			WorkflowID: wf.ID,
			StepID:     wf.Steps[0].ID,
			Title:      "Review invoice #1001",
			AssigneeID: seeder.Subject,
		})
		if err != nil {
			log.Printf("Failed to seed task for %s: %v", wf.Name, err)
		}
	}
	logger.Info("Seeding complete!")
}
