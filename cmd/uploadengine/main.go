// Command uploadengine runs the streaming multipart upload service.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "uploadengine"
	app.Usage = "a streaming multipart/form-data upload engine"
	app.ErrWriter = os.Stderr
	app.Commands = []cli.Command{
		ServeCommand,
		KeygenCommand,
	}

	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(app.ErrWriter, "uploadengine: unknown subcommand %q\n", command)
		fmt.Fprintf(app.ErrWriter, "Run '%s --help' for usage.\n", c.App.Name)
		os.Exit(1)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(app.ErrWriter, err)
		os.Exit(1)
	}
}
