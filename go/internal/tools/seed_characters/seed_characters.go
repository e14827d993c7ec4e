package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roastarena/roastarena/go/internal/ai"
	"github.com/roastarena/roastarena/go/internal/dbconfig"
	"github.com/roastarena/roastarena/go/internal/models"
)

func main() {
	ctx := context.Background()

	// 1) Load characters, built-in roster unless a file is given
	characters := ai.DefaultCharacters
	if path := os.Getenv("CHARACTERS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
			os.Exit(1)
		}
		var fromFile []models.JudgeCharacter
		if err := json.Unmarshal(data, &fromFile); err != nil {
			fmt.Fprintf(os.Stderr, "unmarshal characters: %v\n", err)
			os.Exit(1)
		}
		characters = fromFile
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed characters
	total, inserted, skipped, errs := len(characters), 0, 0, 0
	for _, c := range characters {
		tag, err := pool.Exec(ctx, `
            INSERT INTO judge_characters (id, display_name, style_prompt)
            VALUES ($1,$2,$3)
            ON CONFLICT (id) DO NOTHING
        `, c.ID, c.DisplayName, c.StylePrompt)
		if err != nil {
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Characters seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
