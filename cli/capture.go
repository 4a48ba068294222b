package cli

import (
	"os"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/urfave/cli/v2"

	"go.viam.com/spiblock/data"
)

// CaptureInspectAction prints the metadata of a capture file followed by one line per reading.
func CaptureInspectAction(c *cli.Context) error {
	path, err := singleArg(c)
	if err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	cf, err := data.NewCaptureFile(f)
	if err != nil {
		return err
	}
	defer cf.Close() //nolint:errcheck

	w := c.App.Writer
	md := cf.ReadMetadata()
	printf(w, "%s (%s)", cf.GetPath(), units.HumanSize(float64(cf.Size())))
	printf(w, "device: %s, component type: %s, method: %s", md.GetComponentName(), md.GetComponentType(), md.GetMethodName())
	if len(md.GetTags()) > 0 {
		printf(w, "tags: %s", strings.Join(md.GetTags(), ", "))
	}

	readings, err := data.SensorDataFromCaptureFile(cf)
	var total int
	for idx, reading := range readings {
		requested := reading.GetMetadata().GetTimeRequested().AsTime()
		received := reading.GetMetadata().GetTimeReceived().AsTime()
		total += len(reading.GetBinary())
		printf(w, "%6d  %s  %10s  %s",
			idx,
			requested.Format(time.RFC3339Nano),
			units.HumanSize(float64(len(reading.GetBinary()))),
			received.Sub(requested))
	}
	printf(w, "%d readings, %s", len(readings), units.HumanSize(float64(total)))
	return err
}
