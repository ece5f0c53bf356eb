package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kidlingo/internal/cli/scheme/colours"
	"kidlingo/internal/config"
	"kidlingo/internal/lesson/buddy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		configPath string
		app        *buddy.Buddy
	)

	rootCmd := &cobra.Command{
		Use:   "kidlingo",
		Short: "🧑‍🏫 Language lessons read aloud by Teacher Sam",
		Long: `
┌─────────────────────────────────────┐
│  🧑‍🏫 Welcome to KidLingo! 🌍        │
│  First words in new languages       │
│  Read aloud for kids 👶✨           │
└─────────────────────────────────────┘

KidLingo reads short language lessons aloud. Narration comes from cloud
voices when online and from the voices installed on this device otherwise.
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := config.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			app = buddy.New(cfg, log)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./kidlingo.yaml or $HOME/.kidlingo/kidlingo.yaml)")

	// Lessons command
	lessonsCmd := &cobra.Command{
		Use:   "lessons",
		Short: "📋 List available lessons",
		Long:  "Display the built-in lessons and any configured lesson pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			return app.ListLessons(cmd.Context(), lang)
		},
	}
	lessonsCmd.Flags().StringP("lang", "l", "", "Only lessons taught in this language")

	// Lesson command
	lessonCmd := &cobra.Command{
		Use:   "lesson",
		Short: "📖 Work through a lesson",
	}
	playCmd := &cobra.Command{
		Use:   "play <lesson-id>",
		Short: "🎧 Play a lesson phrase by phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.PlayLesson(cmd.Context(), args[0])
		},
	}
	lessonCmd.AddCommand(playCmd)

	// Say command
	sayCmd := &cobra.Command{
		Use:   "say <text>",
		Short: "🗣️ Say a phrase",
		Long:  "Narrate any phrase in the given language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			voice, _ := cmd.Flags().GetString("voice")
			return app.Say(cmd.Context(), args[0], lang, voice)
		},
	}
	sayCmd.Flags().StringP("lang", "l", "", "Language of the phrase (default: configured language)")
	sayCmd.Flags().StringP("voice", "v", "", "Preferred voice; ignored unless it speaks the language")

	// Voices command
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List on-device voices",
		Long:  "Show installed voices and which one a lesson in the given language would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			return app.ListVoices(cmd.Context(), lang)
		},
	}
	voicesCmd.Flags().StringP("lang", "l", "", "Language to check (default: configured language)")

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Run the narration gateway",
		Long:  "Serve speech synthesis with provider fallback and caching over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Serve(cmd.Context())
		},
	}

	// Cache command
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "📊 Show narration cache status",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			return app.CacheStats(cmd.Context(), url)
		},
	}
	cacheCmd.Flags().String("url", "", "Gateway base URL (default: playback.gateway_url, then the local server)")

	rootCmd.AddCommand(lessonsCmd, lessonCmd, sayCmd, voicesCmd, serveCmd, cacheCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! See you next time! 🌙"))
			return
		}
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}
