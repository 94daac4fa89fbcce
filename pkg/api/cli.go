package api

import (
	"github.com/travigo/punctuality/pkg/app"
	"github.com/travigo/punctuality/pkg/config"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the punctuality web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					application, err := app.Setup(c.Context, cfg)
					if err != nil {
						return err
					}
					defer application.Close()

					return SetupServer(c.String("listen"), application)
				},
			},
		},
	}
}
