package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/samber/do/v2"
	"github.com/vreid/riposte/internal/pkg/arena"
	"github.com/vreid/riposte/internal/pkg/chronicle"
	"github.com/vreid/riposte/internal/pkg/common"
	"github.com/vreid/riposte/internal/pkg/platform"
	"github.com/vreid/riposte/internal/pkg/registry"

	"github.com/urfave/cli/v3"
)

var errMissingBotToken = errors.New("RIPOSTE_BOT_TOKEN is required; set it in the environment or a .env file")

type RiposteService struct {
	EchoService *common.EchoService `do:""`

	ArenaService     *arena.ArenaService         `do:""`
	ChronicleService *chronicle.ChronicleService `do:""`
}

func runServer(_ context.Context, cmd *cli.Command) error {
	if cmd.String("bot-token") == "" {
		return errMissingBotToken
	}

	i := do.New()

	do.ProvideNamedValue(i, "port", cmd.Int("port"))

	do.ProvideNamedValue(i, "bot-token", cmd.String("bot-token"))
	do.ProvideNamedValue(i, "message-url", cmd.String("message-url"))
	do.ProvideNamedValue(i, "moderation-url", cmd.String("moderation-url"))
	do.ProvideNamedValue(i, "voice-url", cmd.String("voice-url"))

	do.ProvideNamedValue(i, "challenge-timeout-seconds", cmd.Int("challenge-timeout-seconds"))
	do.ProvideNamedValue(i, "revenge-timeout-seconds", cmd.Int("revenge-timeout-seconds"))

	resultChan := make(chan arena.Result, 1000)
	var resultSource <-chan arena.Result = resultChan
	var resultSink chan<- arena.Result = resultChan

	do.ProvideNamedValue(i, "result-source", resultSource)
	do.ProvideNamedValue(i, "result-sink", resultSink)

	do.Provide(i, common.NewLogger)
	do.Provide(i, common.NewEchoService)

	do.Provide(i, registry.NewService)
	do.Provide(i, platform.NewWebhookService)

	do.Provide(i, func(i do.Injector) (platform.Notifier, error) {
		return do.MustInvoke[*platform.WebhookService](i), nil
	})
	do.Provide(i, func(i do.Injector) (platform.Moderator, error) {
		return do.MustInvoke[*platform.WebhookService](i), nil
	})
	do.Provide(i, func(i do.Injector) (platform.Voice, error) {
		return do.MustInvoke[*platform.WebhookService](i), nil
	})

	do.Provide(i, arena.NewArenaService)
	do.Provide(i, chronicle.NewChronicleService)

	do.Provide(i, do.InvokeStruct[RiposteService])

	riposteService, err := do.Invoke[RiposteService](i)
	if err != nil {
		return fmt.Errorf("failed to create riposte service: %w", err)
	}

	riposteService.ChronicleService.Start()

	//nolint:wrapcheck
	return riposteService.EchoService.Start()
}

func main() {
	_ = godotenv.Load()

	//nolint:exhaustruct
	cmd := &cli.Command{
		Name: "riposte",
		Commands: []*cli.Command{
			{
				Name: "server",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Value:   3000, //nolint:mnd
						Sources: cli.EnvVars("RIPOSTE_PORT"),
					},
					&cli.StringFlag{
						Name:    "bot-token",
						Sources: cli.EnvVars("RIPOSTE_BOT_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "message-url",
						Value:   "http://localhost:3001/api/messages",
						Sources: cli.EnvVars("RIPOSTE_MESSAGE_URL"),
					},
					&cli.StringFlag{
						Name:    "moderation-url",
						Value:   "http://localhost:3001/api/moderation/restrict",
						Sources: cli.EnvVars("RIPOSTE_MODERATION_URL"),
					},
					&cli.StringFlag{
						Name:    "voice-url",
						Value:   "http://localhost:3001/api/voice/cue",
						Sources: cli.EnvVars("RIPOSTE_VOICE_URL"),
					},
					&cli.IntFlag{
						Name:    "challenge-timeout-seconds",
						Value:   60, //nolint:mnd
						Sources: cli.EnvVars("RIPOSTE_CHALLENGE_TIMEOUT_SECONDS"),
					},
					&cli.IntFlag{
						Name:    "revenge-timeout-seconds",
						Value:   30, //nolint:mnd
						Sources: cli.EnvVars("RIPOSTE_REVENGE_TIMEOUT_SECONDS"),
					},
				},
				Action: runServer,
			},
		},
		DefaultCommand: "server",
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
