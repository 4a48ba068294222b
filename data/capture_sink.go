package data

import (
	"context"
	"sync"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	v1 "go.viam.com/api/app/datasync/v1"
	"go.viam.com/utils"
	"google.golang.org/protobuf/types/known/timestamppb"

	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/protocol"
)

// DefaultMaxFileSize is the size a capture file may reach before it is completed and a new one
// is started.
const DefaultMaxFileSize = 64 * units.MiB

// CaptureConfig describes where validated blocks are persisted.
type CaptureConfig struct {
	Dir         string   `json:"dir"`
	MaxFileSize string   `json:"max_file_size,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *CaptureConfig) Validate(path string) error {
	if c.Dir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "dir")
	}
	if c.MaxFileSize != "" {
		size, err := units.RAMInBytes(c.MaxFileSize)
		if err != nil {
			return utils.NewConfigValidationError(path, errors.Wrap(err, "invalid max_file_size"))
		}
		if size <= 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("max_file_size must be positive, got %q", c.MaxFileSize))
		}
	}
	return nil
}

func (c *CaptureConfig) maxFileSize() int64 {
	if c.MaxFileSize == "" {
		return DefaultMaxFileSize
	}
	size, err := units.RAMInBytes(c.MaxFileSize)
	if err != nil || size <= 0 {
		return DefaultMaxFileSize
	}
	return size
}

// CaptureSink writes the payload of every valid block a device produces into size-rotated
// capture files under <dir>/<device>.
type CaptureSink struct {
	dir     string
	md      *v1.DataCaptureMetadata
	maxSize int64
	logger  logging.Logger

	mu        sync.Mutex
	current   *captureWriter
	completed []string
	captured  int64
	closed    bool
}

// NewCaptureSink returns a sink for the named device. Files are only created once the first
// block arrives.
func NewCaptureSink(conf *CaptureConfig, device string, logger logging.Logger) (*CaptureSink, error) {
	if err := conf.Validate("capture"); err != nil {
		return nil, err
	}
	return &CaptureSink{
		dir:     conf.Dir,
		md:      BuildCaptureMetadata(device, conf.Tags),
		maxSize: conf.maxFileSize(),
		logger:  logger.Sublogger("capture"),
	}, nil
}

// Handle persists result and logs any failure. It can be registered with
// protocol.WithResultHandler.
func (s *CaptureSink) Handle(ctx context.Context, result protocol.Result) {
	if err := s.Write(result); err != nil {
		s.logger.Errorw("failed to capture block", "seq", result.Seq, "error", err)
	}
}

// Write persists the payload of result. Failed results are skipped.
func (s *CaptureSink) Write(result protocol.Result) error {
	if !result.OK() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("capture sink is closed")
	}
	if s.current == nil {
		w, err := newCaptureWriter(s.dir, s.md)
		if err != nil {
			return errors.Wrap(err, "cannot create capture file")
		}
		s.logger.Debugw("started capture file", "path", w.path)
		s.current = w
	}

	reading := &v1.SensorData{
		Metadata: &v1.SensorMetadata{
			TimeRequested: timestamppb.New(result.Started),
			TimeReceived:  timestamppb.New(result.Started.Add(result.Duration)),
		},
		Data: &v1.SensorData_Binary{Binary: result.Payload},
	}
	if err := s.current.WriteNext(reading); err != nil {
		return err
	}
	s.captured++
	if s.current.size >= s.maxSize {
		return s.rotate()
	}
	return nil
}

func (s *CaptureSink) rotate() error {
	w := s.current
	s.current = nil
	path, err := w.finish()
	if err != nil {
		return errors.Wrapf(err, "cannot complete capture file %s", w)
	}
	s.completed = append(s.completed, path)
	s.logger.Infow("completed capture file", "path", path, "size", units.HumanSize(float64(w.size)))
	return nil
}

// Completed returns the paths of all capture files finished so far.
func (s *CaptureSink) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.completed...)
}

// Captured returns the number of blocks written.
func (s *CaptureSink) Captured() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// Close completes the file in progress, if any. Further writes fail.
func (s *CaptureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.current == nil {
		return nil
	}
	return s.rotate()
}
