package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
)

// NewSeedCmd loads the demo catalog, or a JSON dataset file, into the database.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert lesson content and quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := fixtures.Demo()
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				data = domain.Dataset{}
				if err := json.Unmarshal(raw, &data); err != nil {
					return fmt.Errorf("decode %s: %w", file, err)
				}
			}

			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			s, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.seed(cmd.Context(), data)
			if err != nil {
				return err
			}
			log.Info("catalog seeded",
				zap.Int("contents", res.Contents),
				zap.Int("quizzes", res.Quizzes),
				zap.Int("questions", res.Questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON dataset ({\"contents\":[...],\"quizzes\":[...]}); defaults to the demo catalog")
	return cmd
}
