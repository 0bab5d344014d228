package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"lesson-quiz-service/internal/app"
)

// NewFlowCmd prints the WhatsApp Flow JSON of a quiz.
func NewFlowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "flow <quizID>",
		Short: "Print the WhatsApp Flow definition of a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			s, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			quiz, err := s.catalog.GetQuizWithQuestions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			flow, err := app.BuildFlow(quiz)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(flow)
		},
	}
}
