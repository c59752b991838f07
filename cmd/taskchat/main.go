package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskchat/pkg/api"
	"taskchat/pkg/config"
	"taskchat/pkg/logger"
	"taskchat/pkg/models"
	"taskchat/pkg/shutdown"
	"taskchat/pkg/syncer"
)

func main() {
	_ = godotenv.Load(".env")
	serverVal, projectVal, authorVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitWithLevel(cfg.Logging.Level)

	baseURL := cfg.Backend.BaseURL
	if setFlags["server"] || baseURL == "" {
		baseURL = serverVal
	}
	author := authorVal
	if author == "" {
		author = os.Getenv("USER")
	}

	client := api.NewClient(baseURL,
		api.WithToken(cfg.Backend.Token),
		api.WithTimeout(cfg.BackendTimeout()),
		api.WithRateLimit(cfg.Backend.RPS, cfg.Backend.Burst),
	)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if projectVal == "" {
		listProjects(ctx, client)
		return
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Warn("metrics_endpoint_failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	engine := syncer.New(client, syncer.Options{
		Author:       author,
		PollInterval: cfg.PollInterval(),
		PageLimit:    cfg.PageLimit(),
	})
	defer engine.Close()

	watch, unwatch := engine.Watch()
	defer unwatch()
	engine.SelectProject(projectVal)
	fmt.Printf("joined project %s as %s (/delete <id> to delete, /quit to exit)\n", projectVal, author)

	go renderLoop(ctx, engine, watch)
	inputLoop(ctx, engine)
}

func listProjects(ctx context.Context, client *api.Client) {
	ps, err := client.ListProjects(ctx)
	if err != nil {
		log.Fatalf("failed to list projects: %v", err)
	}
	if len(ps) == 0 {
		fmt.Println("no projects; pass -project <id> to create one implicitly by chatting")
		return
	}
	for _, p := range ps {
		fmt.Printf("%s\t%s\n", p.ID, p.Name)
	}
}

// renderLoop prints newly arrived messages and deletion notices whenever the
// store changes. The store itself stays the single source of truth; this
// only tracks what has been echoed already.
func renderLoop(ctx context.Context, engine *syncer.Engine, watch <-chan struct{}) {
	printed := make(map[string]bool) // id -> tombstone already shown
	for {
		select {
		case <-ctx.Done():
			return
		case <-watch:
		}
		for _, m := range engine.Messages() {
			shownDeleted, seen := printed[m.ID]
			switch {
			case !seen:
				printMessage(m)
				printed[m.ID] = m.Deleted
			case m.Deleted && !shownDeleted:
				fmt.Printf("    message %s was deleted\n", m.ID)
				printed[m.ID] = true
			}
		}
	}
}

func printMessage(m models.Message) {
	ts := time.Unix(0, m.TS).Local().Format("15:04:05")
	fmt.Printf("[%s] %s: %s  (%s)\n", ts, m.Author, m.Body, m.ID)
}

func inputLoop(ctx context.Context, engine *syncer.Engine) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/delete "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
			if err := engine.Delete(ctx, id); err != nil {
				fmt.Printf("delete failed: %v\n", err)
			}
		default:
			if _, err := engine.Send(ctx, line); err != nil {
				// Input stays in the terminal scrollback; nothing phantom
				// was added to the conversation.
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}
