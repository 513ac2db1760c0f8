package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eatzone",
		Short: "Meal photo capture and ingredient extraction tool",
		Long: `Eatzone captures meal photos, compresses them for transport, and
extracts zoned ingredient lists using vision-capable LLMs (Ollama,
OpenAI, or Gemini).

It ships a web API for analysis and entry storage, a CLI capture flow
driven by directory-backed camera devices, and an evaluation harness
for measuring extraction accuracy against labeled datasets.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCaptureCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}
