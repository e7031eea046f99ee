package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tocflow/gametrace/gametrace/config"
	"github.com/tocflow/gametrace/gametrace/db"
	openai_provider "github.com/tocflow/gametrace/gametrace/provider/openai"
)

// ExampleBasicPipelineUsage demonstrates basic pipeline usage
func ExampleBasicPipelineUsage() {
	// Step 1: Open database connection and migrate schema
	conn, err := db.ConnectToDB("gametrace.db")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := db.RunMigrations(conn); err != nil {
		log.Fatal(err)
	}

	// Step 2: Configure the engine
	engineCfg := &config.EngineConfig{
		TurnPageSize:         20,
		MinTurnContentLength: 20,
		RetryAttempts:        3,
		RetryBaseDelay:       time.Second,
		SimilarityLimit:      5,
		MinTokenLength:       3,
		BatchConcurrency:     4,
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Step 3: Wire collaborators
	turnStore := NewLibSQLTurnStore(conn)
	gameStore := NewLibSQLGameStore(conn, logger)
	embedder := openai_provider.NewClient(
		os.Getenv("OPENAI_API_KEY"),
		"https://api.openai.com/v1/embeddings",
		"text-embedding-3-small",
		15*time.Second,
	)

	// Step 4: Initialize the pipeline
	pipeline, err := NewPipeline(PipelineConfig{
		Config:          engineCfg,
		TurnStore:       turnStore,
		GameStore:       gameStore,
		EmbeddingClient: embedder,
		Logger:          logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// Step 5: Record a turn and process the most recent page
	turn := &Turn{
		ClientID: "client-1",
		Content:  "Let's start the Firefighting game to tackle constant escalations",
	}
	if err := turnStore.CreateTurn(ctx, turn); err != nil {
		log.Fatal(err)
	}

	outcomes, err := pipeline.ProcessTurnBatch(ctx, "client-1", "", nil)
	if err != nil {
		log.Fatal(err)
	}
	for _, outcome := range outcomes {
		if outcome != nil && outcome.GameCreated {
			fmt.Println("recorded game:", outcome.State.GameName)
		}
	}

	// Step 6: Rank previously recorded games against a new UDE
	similar, err := pipeline.SimilarGames(ctx, "client-1", "constant escalations drain the team", 5)
	if err != nil {
		log.Fatal(err)
	}
	for _, game := range similar {
		fmt.Printf("%s (%.2f)\n", game.GameName, game.SimilarityScore)
	}
}
