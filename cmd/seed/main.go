// AngelaMos | 2026
// main.go

// Command seed loads a course catalog file into the database and purges
// the shared content cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/migrations"
)

type catalogFile struct {
	Weeks []weekFile `koanf:"weeks"`
}

type weekFile struct {
	Number int         `koanf:"number"`
	Title  string      `koanf:"title"`
	Topics []topicFile `koanf:"topics"`
}

type topicFile struct {
	ID        string         `koanf:"id"`
	Title     string         `koanf:"title"`
	Questions []questionFile `koanf:"questions"`
}

type questionFile struct {
	ID       string   `koanf:"id"`
	Title    string   `koanf:"title"`
	Solution string   `koanf:"solution"`
	Hints    []string `koanf:"hints"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	catalogPath := flag.String("catalog", "catalog.yaml", "path to catalog file")
	flag.Parse()

	if err := run(*configPath, *catalogPath); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, catalogPath string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits next

	if err := migrations.Up(db.DB.DB); err != nil {
		return err
	}

	counts, err := apply(ctx, db, catalog)
	if err != nil {
		return err
	}
	slog.Info("catalog applied",
		"weeks", counts.weeks,
		"topics", counts.topics,
		"questions", counts.questions,
		"hints", counts.hints,
	)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, cache left to expire", "error", err)
		return nil
	}
	defer rdb.Close() //nolint:errcheck // process exits next

	purged, err := content.NewCachedCatalog(nil, rdb, cfg.Content.CacheTTL).Purge(ctx)
	if err != nil {
		return err
	}
	slog.Info("content cache purged", "keys", purged)
	return nil
}

func loadCatalog(path string) (*catalogFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var c catalogFile
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Weeks) == 0 {
		return nil, fmt.Errorf("catalog %s has no weeks: %w", path, core.ErrInvalidInput)
	}
	return &c, nil
}

type applied struct {
	weeks, topics, questions, hints int
}

func apply(ctx context.Context, db *core.Database, c *catalogFile) (applied, error) {
	var n applied

	err := db.WithTx(ctx, func(tx core.DBTX) error {
		repo := content.NewRepository(tx)

		for _, w := range c.Weeks {
			if err := repo.UpsertWeek(ctx, &content.Week{Number: w.Number, Title: w.Title}); err != nil {
				return err
			}
			n.weeks++

			for ti, t := range w.Topics {
				topic := &content.Topic{ID: t.ID, WeekNumber: w.Number, Title: t.Title, Position: ti}
				if err := repo.UpsertTopic(ctx, topic); err != nil {
					return err
				}
				n.topics++

				for qi, q := range t.Questions {
					question := &content.Question{
						ID:       q.ID,
						TopicID:  t.ID,
						Title:    q.Title,
						Solution: q.Solution,
						Position: qi,
					}
					if err := repo.UpsertQuestion(ctx, question); err != nil {
						return err
					}
					n.questions++

					for hi, body := range q.Hints {
						hint := &content.Hint{QuestionID: q.ID, Index: hi, Body: body}
						if err := repo.UpsertHint(ctx, hint); err != nil {
							return err
						}
						n.hints++
					}
				}
			}
		}
		return nil
	})

	return n, err
}
