package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewDispatchCmd sends a lesson from the command line. The quiz start is queued in redis so
// a running server picks it up; without redis nobody would be left to run it.
func NewDispatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <contact> <contentID>",
		Short: "Send a lesson video and schedule its quiz",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return errors.New("dispatch from the CLI needs redis.addr so the server can run the quiz start")
			}
			s, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.dispatcher.Dispatch(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			log.Info("lesson sent",
				zap.String("quiz_id", res.QuizID),
				zap.String("video_url", res.VideoURL),
				zap.String("job_id", res.JobID),
				zap.Time("start_at", res.StartAt))
			return nil
		},
	}
}
