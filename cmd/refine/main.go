package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/leavend/photorefine/internal/domain"
	"github.com/leavend/photorefine/internal/editor"
	"github.com/leavend/photorefine/internal/infra"
	"github.com/leavend/photorefine/internal/providers/gemini"
	"github.com/leavend/photorefine/internal/storage"
)

// newEditor is swapped out in tests.
var newEditor = func(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (editor.Editor, error) {
	return gemini.NewClient(ctx, gemini.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  logger,
	})
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine <image>",
		Short: "Edit one photo with a text instruction",
		Long: strings.TrimSpace(`
Send a PNG, JPEG, GIF or WebP image together with an instruction to the
Gemini image model and save the edited image. GEMINI_API_KEY must be set.
`),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRefine,
	}
	cmd.Flags().StringP("prompt", "p", "", "Edit instruction (defaults to EDITOR_DEFAULT_PROMPT)")
	cmd.Flags().StringP("out", "o", "", "Output directory (defaults to EXPORT_DIR)")
	cmd.Flags().StringP("filename", "f", domain.DownloadFilename, "Output file name")
	cmd.Flags().StringP("model", "m", "", "Model override (defaults to GEMINI_IMAGE_MODEL)")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Upper bound for the edit call")
	return cmd
}

func runRefine(cmd *cobra.Command, args []string) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if model, _ := cmd.Flags().GetString("model"); strings.TrimSpace(model) != "" {
		cfg.GeminiModel = strings.TrimSpace(model)
	}
	prompt := cfg.DefaultPrompt
	if cmd.Flags().Changed("prompt") {
		prompt, _ = cmd.Flags().GetString("prompt")
	}
	outDir, _ := cmd.Flags().GetString("out")
	if strings.TrimSpace(outDir) == "" {
		outDir = cfg.ExportDir
	}
	filename, _ := cmd.Flags().GetString("filename")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	logger := infra.NewCLILogger(cfg.AppEnv).With().Str("cmd", "refine").Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ed, err := newEditor(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	ctrl := editor.New(ed, editor.Options{
		Prompt: prompt,
		Source: editor.SourceOptions{MaxBytes: cfg.MaxUploadBytes, MaxDimension: cfg.MaxSourceDimension},
		Logger: &logger,
	})

	if err := ctrl.SelectImageFile(ctx, args[0]); err != nil {
		return err
	}
	logger.Info().Str("image", args[0]).Str("model", cfg.GeminiModel).Msg("editing image")
	if err := ctrl.RequestEdit(ctx); err != nil {
		return err
	}

	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return err
	}
	key, err := store.WriteDataURI(ctx, filename, ctrl.State().Edited)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), store.Path(key))
	return nil
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "refine:", err)
		os.Exit(1)
	}
}
