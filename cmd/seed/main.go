package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"parley/internal/auth"
	"parley/internal/catalog"
	"parley/internal/config"
	"parley/internal/domain/services"
	"parley/internal/repository/postgres"
	serviceAuth "parley/internal/service/auth"
	"parley/internal/service/feedback"
	serviceLLM "parley/internal/service/llm"
	"parley/internal/service/messages"
	"parley/internal/storage"
)

// demoConversations are sent as user messages, one conversation each; the
// first reply of each gets regenerated so the seed data contains chains.
var demoConversations = [][]string{
	{"What is a version chain?", "And how does feedback follow it?"},
	{"Write a haiku about databases."},
}

func main() {
	clearData := flag.Bool("clear-data", false, "Delete all conversations, messages and feedback before seeding")
	createUsers := flag.Bool("users", false, "Create demo users through the Supabase Admin API")
	password := flag.String("password", "parley-demo", "Password for demo users (with -users)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatalf("seed requires STORE_DRIVER=%s", config.StoreDriverPostgres)
	}
	// SAFETY: Prevent destructive operations in production
	if cfg.IsProduction() && *clearData {
		log.Fatalf("BLOCKED: -clear-data cannot run in production")
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	ctx := context.Background()
	log.Printf("Seeding database (environment: %s)", cfg.Environment)

	if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames()
	if *clearData {
		if err := clearAll(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("Existing conversations cleared")
	}

	owner := services.Identity{UserID: cfg.DevUserID}
	if *createUsers {
		owner.UserID, err = seedUsers(ctx, cfg, *password)
		if err != nil {
			log.Fatalf("Failed to create users: %v", err)
		}
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:        pool,
		Tables:      tables,
		Logger:      logger,
		LockTimeout: cfg.LockTimeout,
	}
	conversationRepo := postgres.NewConversationRepository(repoConfig)
	messageRepo := postgres.NewMessageRepository(repoConfig)
	feedbackRepo := postgres.NewFeedbackRepository(repoConfig)
	aiModelRepo := postgres.NewAIModelRepository(repoConfig)
	settingsRepo := postgres.NewUserSettingsRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	providerFactory := serviceLLM.NewProviderFactory(cfg)
	modelCatalog, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}
	if err := modelCatalog.Sync(ctx, aiModelRepo, providerFactory.Available, logger); err != nil {
		log.Fatalf("Failed to sync model catalog: %v", err)
	}

	// Seed replies always come from the mock provider
	generator := serviceLLM.NewProviderGenerator(serviceLLM.FactorySource(providerFactory), serviceLLM.ProviderLorem, logger)
	authorizer := serviceAuth.NewRoleAuthorizer(logger)
	messageService := messages.NewService(
		conversationRepo, messageRepo, feedbackRepo, aiModelRepo, settingsRepo,
		txManager, authorizer, generator, storage.DisabledStore{}, cfg, logger,
	)
	feedbackService := feedback.NewService(feedbackRepo, messageRepo, conversationRepo, txManager, authorizer, logger)

	for _, turns := range demoConversations {
		if err := seedConversation(ctx, messageService, feedbackService, owner, turns); err != nil {
			log.Fatalf("Failed to seed conversation: %v", err)
		}
	}

	log.Printf("Seeded %d conversations for user %s", len(demoConversations), owner.UserID)
}

func seedConversation(ctx context.Context, msgs *messages.Service, fb *feedback.Service, owner services.Identity, turns []string) error {
	var convID *int64
	for i, content := range turns {
		sent, err := msgs.Send(ctx, owner, &services.SendMessageRequest{ConversationID: convID, Content: content})
		if err != nil {
			return fmt.Errorf("send %q: %w", content, err)
		}
		convID = &sent.Conversation.ID

		if i > 0 {
			continue
		}
		// two extra versions on the first reply
		for range 2 {
			if _, err := msgs.Regenerate(ctx, owner, &services.RegenerateRequest{MessageID: sent.BotMessage.ID}); err != nil {
				return fmt.Errorf("regenerate %d: %w", sent.BotMessage.ID, err)
			}
		}
		if _, err := fb.SetFeedback(ctx, owner, sent.BotMessage.ID, &services.SetFeedbackRequest{FeedbackType: "like"}); err != nil {
			return fmt.Errorf("feedback on %d: %w", sent.BotMessage.ID, err)
		}
	}
	return nil
}

// seedUsers recreates a demo user and an admin, returning the demo user's id
func seedUsers(ctx context.Context, cfg *config.Config, password string) (string, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return "", fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required with -users")
	}
	admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey)

	var demoID string
	for _, u := range []struct{ email, role string }{
		{"demo@parley.local", ""},
		{"admin@parley.local", services.RoleAdmin},
	} {
		if err := admin.DeleteUserByEmail(ctx, u.email); err != nil {
			return "", err
		}
		id, err := admin.CreateUser(ctx, u.email, password, u.role)
		if err != nil {
			return "", err
		}
		log.Printf("Created user %s (%s)", u.email, id)
		if u.role == "" {
			demoID = id
		}
	}
	return demoID, nil
}

// clearAll removes user data but keeps the model catalog
func clearAll(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	stmt := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join([]string{
		tables.Feedback,
		tables.Messages,
		tables.Conversations,
		tables.UserSettings,
	}, ", "))
	_, err := pool.Exec(ctx, stmt)
	return err
}
