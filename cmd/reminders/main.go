package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

const defaultAddr = "http://localhost:8080"

var addrFlag = cli.StringFlag{
	Name:   "addr, a",
	Usage:  "base URL of a running reminders daemon",
	Value:  defaultAddr,
	EnvVar: "REMINDERS_ADDR",
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "reminders"
	app.HelpName = "reminders"
	app.Usage = "meal reminder daemon and test harness"
	app.UsageText = "reminders <command> [arguments...]"
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the reminder daemon",
			Action: run,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:   "config, c",
					Usage:  "path to the YAML config file",
					EnvVar: "REMINDERS_CONFIG_PATH",
				},
			},
		},
		{
			Name:   "trigger",
			Usage:  "fire a test reminder for a random meal now",
			Action: remote("POST", "/api/test/trigger"),
			Flags:  []cli.Flag{addrFlag},
		},
		{
			Name:   "schedule-quick",
			Usage:  "move breakfast to one minute from now",
			Action: remote("POST", "/api/test/schedule-quick"),
			Flags:  []cli.Flag{addrFlag},
		},
		{
			Name:   "settings",
			Usage:  "print the effective settings",
			Action: remote("GET", "/api/settings"),
			Flags:  []cli.Flag{addrFlag},
		},
		{
			Name:   "time",
			Usage:  "print the current virtual time",
			Action: remote("GET", "/api/time"),
			Flags:  []cli.Flag{addrFlag},
		},
		{
			Name:   "reload",
			Usage:  "re-read settings and clear today's fired reminders",
			Action: remote("POST", "/api/reload"),
			Flags:  []cli.Flag{addrFlag},
		},
		{
			Name:   "check",
			Usage:  "run a poll immediately",
			Action: remote("POST", "/api/check"),
			Flags:  []cli.Flag{addrFlag},
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "reminders:", err)
		os.Exit(1)
	}
}
