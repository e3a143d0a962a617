package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/reconsole/internal/config"
	"github.com/jask/reconsole/internal/hub"
	"github.com/jask/reconsole/internal/tui"
	"github.com/jask/reconsole/internal/util/logx"
	"github.com/jask/reconsole/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logx.SetupFromEnv()
	defer logx.Close()

	client := hub.NewClient(hub.Config{
		BaseURL: cfg.Hub.BaseURL,
		Timeout: time.Duration(cfg.Hub.TimeoutSeconds) * time.Second,
	})

	p := tea.NewProgram(tui.New(ctx, cfg, client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
		if dump := logx.Dump(); dump != "" {
			fmt.Fprintln(os.Stderr, dump)
		}
		os.Exit(1)
	}
}
