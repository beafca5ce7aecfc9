package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mrlokans/favsync/internal/config"
	"github.com/mrlokans/favsync/internal/entities"
	"github.com/mrlokans/favsync/internal/entrypoint"
	"github.com/mrlokans/favsync/internal/favorites"
	"github.com/mrlokans/favsync/internal/logger"
)

// FavoritesCommand loads the favorites of one user, reconciles them with the
// remote backend when one is configured and prints them.
type FavoritesCommand struct {
	UserID       string
	DatabasePath string
	CacheBackend string
	Add          string
	Title        string
	Remove       string
	JSON         bool
	Verbose      bool
	Timeout      time.Duration
}

func NewFavoritesCommand() *FavoritesCommand {
	return &FavoritesCommand{}
}

func (cmd *FavoritesCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("favorites", flag.ExitOnError)

	fs.StringVar(&cmd.UserID, "user", "", "User whose favorites to load (empty for the anonymous scope)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database (defaults to DATABASE_PATH)")
	fs.StringVar(&cmd.CacheBackend, "cache", "", "Cache backend: sqlite, file or memory (defaults to CACHE_BACKEND)")
	fs.StringVar(&cmd.Add, "add", "", "Tour id to add to favorites")
	fs.StringVar(&cmd.Title, "title", "", "Title of the tour given with -add")
	fs.StringVar(&cmd.Remove, "remove", "", "Tour id to remove from favorites")
	fs.BoolVar(&cmd.JSON, "json", false, "Print favorites as JSON")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")
	fs.DurationVar(&cmd.Timeout, "timeout", 30*time.Second, "Give up waiting for the remote after this long")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s favorites [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Load favorites from the local cache, reconcile them with REMOTE_BASE_URL\n")
		fmt.Fprintf(os.Stderr, "when it is set, optionally change them and print the result.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s favorites -user u1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s favorites -user u1 -add t42 -title \"Old Town Walk\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s favorites -user u1 -remove t42 -json\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Add != "" && cmd.Remove != "" {
		return fmt.Errorf("-add and -remove cannot be combined")
	}
	if cmd.Title != "" && cmd.Add == "" {
		return fmt.Errorf("-title requires -add")
	}

	return nil
}

func (cmd *FavoritesCommand) Run() error {
	cfg := config.NewConfig()
	if cmd.DatabasePath != "" {
		cfg.Database.Path = cmd.DatabasePath
	}
	if cmd.CacheBackend != "" {
		cfg.Cache.Backend = config.CacheBackend(cmd.CacheBackend)
	}
	level := "warn"
	if cmd.Verbose {
		level = "debug"
	}
	logger.Init(level, true)

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()
	defer app.Close(ctx)

	app.Engine.Activate(ctx, favorites.UserScope(cmd.UserID))
	app.Engine.Wait()

	switch {
	case cmd.Add != "":
		title := cmd.Title
		if title == "" {
			title = cmd.Add
		}
		if err := app.Engine.AddFavorite(ctx, entities.FavoriteEntry{ID: cmd.Add, Title: title}); err != nil {
			return fmt.Errorf("failed to add favorite: %w", err)
		}
	case cmd.Remove != "":
		if err := app.Engine.RemoveFavorite(ctx, cmd.Remove); err != nil {
			return fmt.Errorf("failed to remove favorite: %w", err)
		}
	}

	state := app.Engine.Snapshot()
	if cmd.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state.Entries)
	}

	cmd.print(state)
	return nil
}

func (cmd *FavoritesCommand) print(state *favorites.State) {
	fmt.Printf("Favorites for %s (%s)\n", state.Scope, state.Status)
	fmt.Println("==============")

	if state.Count() == 0 {
		fmt.Println("No favorites")
		return
	}

	for i, entry := range state.Entries {
		fmt.Printf("%d. %s [%s]\n", i+1, entry.Title, entry.ID)
		if cmd.Verbose {
			if entry.Location != "" {
				fmt.Printf("   Location: %s\n", entry.Location)
			}
			if entry.Duration != "" {
				fmt.Printf("   Duration: %s\n", entry.Duration)
			}
			if entry.Price > 0 {
				fmt.Printf("   Price: %.2f %s\n", entry.Price, entry.Currency)
			}
			fmt.Printf("   Added: %s\n", entry.AddedAt.Format(time.RFC3339))
		}
	}
	fmt.Printf("\nTotal: %d\n", state.Count())
}
