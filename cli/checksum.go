package cli

import (
	"os"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/spiblock/protocol"
)

// ChecksumAction treats a file as one received block and prints every CRC32 convention of its
// payload next to the trailer, marking the ones that match.
func ChecksumAction(c *cli.Context) error {
	path, err := singleArg(c)
	if err != nil {
		return err
	}
	variant := protocol.ChecksumVariant{TrailerOrder: c.String(flagOrder)}
	if err := variant.Validate(flagOrder); err != nil {
		return err
	}

	//nolint:gosec
	block, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	trailer, err := variant.Trailer(block)
	if err != nil {
		return errors.Wrap(err, path)
	}
	payload := block[:len(block)-protocol.TrailerSize]

	w := c.App.Writer
	printf(w, "%s: %s payload, trailer 0x%08x (%s)",
		path, units.HumanSize(float64(len(payload))), trailer, c.String(flagOrder))
	matches := 0
	for _, v := range protocol.Variants(payload) {
		mark := ""
		switch trailer {
		case v.Sum:
			mark = "  <- match"
			matches++
		case v.Inverted:
			mark = "  <- match (inverted)"
			matches++
		}
		printf(w, "%-14s 0x%08x  ~0x%08x%s", v.Name, v.Sum, v.Inverted, mark)
	}
	if matches == 0 {
		printf(w, "no convention matches the trailer")
	}
	return nil
}
