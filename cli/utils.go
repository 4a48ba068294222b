package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// printf prints a line to w.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// singleArg returns the only positional argument of c.
func singleArg(c *cli.Context) (string, error) {
	switch c.Args().Len() {
	case 0:
		return "", errors.Errorf("no FILE given. use %s --help for more information", c.Command.Name)
	case 1:
		return c.Args().First(), nil
	default:
		return "", errors.New("too many arguments. make sure to specify flags before the FILE argument")
	}
}
