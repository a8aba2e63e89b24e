package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aTrapDeer/intelligence-survival/internal/config"
	"github.com/aTrapDeer/intelligence-survival/internal/db"
	"github.com/aTrapDeer/intelligence-survival/internal/engine"
	"github.com/aTrapDeer/intelligence-survival/internal/llm"
	"github.com/aTrapDeer/intelligence-survival/internal/migrate"
	"github.com/aTrapDeer/intelligence-survival/internal/progression"
	"github.com/aTrapDeer/intelligence-survival/internal/repo"
	"github.com/aTrapDeer/intelligence-survival/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "survival",
	Short: "Intelligence Survival server and operations CLI",
	Long: `Intelligence Survival runs CIA narrative missions driven by a text generator.
The server generates missions, redacts their briefings, tracks round-by-round
decisions, escalates threat levels and resolves outcomes. This CLI starts the
server and inspects the workspace database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SURVIVAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(characterCmd())
	rootCmd.AddCommand(analyticsCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default survival.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrations applied:", db.Path(viper.GetString("workspace")))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			gen := llm.NewClient(cfg.Generator.BaseURL, cfg.Generator.Model, cfg.APIKey(),
				llm.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Generator.RequestTimeoutSecs) * time.Second}))
			e := engine.New(conn, cfg, gen)
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:         cfg.JWTSecret(),
					AllowUserIDHeader: cfg.Auth.AllowUserIDHeader,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Intelligence Survival API on http://%s%s (model %s)\n", addr, basePath, cfg.Generator.Model)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func missionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mission", Short: "Inspect mission sessions"}
	cmd.AddCommand(missionListCmd())
	cmd.AddCommand(missionShowCmd())
	cmd.AddCommand(missionDecisionsCmd())
	return cmd
}

func missionListCmd() *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mission sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				sessions, err := r.ListSessions(ctx, userID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sessions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "State", "Category", "Round", "Status", "Outcome", "Score"})
				for _, s := range sessions {
					outcome, score := "", ""
					if s.Outcome != nil {
						outcome = string(*s.Outcome)
					}
					if s.SuccessScore != nil {
						score = fmt.Sprintf("%d", *s.SuccessScore)
					}
					tw.AppendRow(table.Row{s.ID, s.State, s.Category, fmt.Sprintf("%d/%d", s.CurrentRound, s.MaxRounds), s.OperationalStatus, outcome, score})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "filter by user")
	cmd.Flags().IntVar(&limit, "limit", 50, "max sessions")
	return cmd
}

func missionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one mission session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
}

func missionDecisionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decisions <session-id>",
		Short: "Show a session's decision log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				decisions, err := r.ListDecisions(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(decisions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Round", "Type", "Sound", "Threat", "Risk", "Input"})
				for _, d := range decisions {
					tw.AppendRow(table.Row{d.RoundNumber, d.Type, d.Sound, d.ThreatLevelAfter, d.RiskAssessment, truncate(d.InputText(), 48)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	var sessionID string
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEvents(ctx, sessionID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Session", "Payload"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.TS, e.Type, e.SessionID, truncate(e.Payload, 60)})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().StringVar(&sessionID, "session", "", "filter by session id")
	tail.Flags().IntVar(&limit, "limit", 50, "max events")
	log.AddCommand(tail)
	return log
}

func characterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "character", Short: "Character stats and skills"}
	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user's stats and skills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				stats, err := r.GetCharacterStats(ctx, args[0])
				if err != nil && !errors.Is(err, repo.ErrNotFound) {
					return err
				}
				skills, err := r.ListUserSkills(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"stats": stats, "skills": skills})
				}
				fmt.Printf("level %d, xp %d, missions %d (%d succeeded), reputation %d\n",
					stats.BaseLevel, stats.BaseXP, stats.MissionsCompleted, stats.SuccessfulMissions, stats.ReputationScore)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Skill", "Level", "XP", "Used"})
				for _, s := range skills {
					tw.AppendRow(table.Row{s.SkillName, s.Level, s.XP, s.TimesUsed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics <user-id>",
		Short: "Show a user's completed-mission analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				sessions, decisions, err := r.CompletedSessions(ctx, args[0])
				if err != nil {
					return err
				}
				a := progression.Analyze(sessions, decisions)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"analytics": a, "suggestions": progression.Suggestions(a)})
				}
				fmt.Printf("missions %d, success rate %.0f%%, avg rounds %.1f\n",
					a.TotalMissions, a.SuccessRate*100, a.AverageRounds)
				fmt.Printf("risk preference %s, custom input %.0f%%, soundness %.0f%%\n",
					a.RiskPreference, a.CustomInputUsage*100, a.OperationalSoundnessAvg*100)
				for _, s := range progression.Suggestions(a) {
					fmt.Println("-", s)
				}
				return nil
			})
		},
	}
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
