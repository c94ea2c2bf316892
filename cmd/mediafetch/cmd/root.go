package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultURL = "http://127.0.0.1:8080"

// cli carries settings shared by the client commands.
type cli struct {
	v *viper.Viper
}

func (c *cli) client() *Client {
	return NewClient(strings.TrimRight(c.v.GetString("url"), "/"), c.v.GetString("token"))
}

// NewRootCmd builds the command tree. Flags and environment are read through
// a private viper instance, so trees are independent of each other.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix("MEDIAFETCH")
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "mediafetch",
		Short: "Priority-ordered media fetch scheduler",
		Long: `mediafetch downloads media with yt-dlp inside a daily time window, one task
at a time, highest priority first, and saves the files to a local directory or
an S3-compatible bucket.

Run the scheduler:
  mediafetch serve --config config.yaml

Manage a running instance:
  mediafetch task add https://example.com/watch?v=1 --catalogue music --download audio_highest
  mediafetch task ls --state pending
  mediafetch window add 01:00 06:00

Client settings:
  MEDIAFETCH_URL      API endpoint (default: ` + defaultURL + `)
  MEDIAFETCH_TOKEN    bearer token, when the server sets http.token`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("url", defaultURL, "mediafetch API URL")
	pf.StringP("token", "t", "", "API bearer token")
	_ = c.v.BindPFlag("url", pf.Lookup("url"))
	_ = c.v.BindPFlag("token", pf.Lookup("token"))

	root.AddCommand(
		newServeCmd(),
		newTaskCmd(c),
		newWindowCmd(c),
		newLogsCmd(c),
		newEventsCmd(c),
		newStrategiesCmd(c),
		newStatusCmd(c),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
