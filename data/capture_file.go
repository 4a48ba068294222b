package data

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matttproud/golang_protobuf_extensions/pbutil"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	v1 "go.viam.com/api/app/datasync/v1"
)

const (
	// InProgressCaptureFileExt defines the file extension for capture files which are currently
	// being written to.
	InProgressCaptureFileExt = ".prog"
	// CompletedCaptureFileExt defines the file extension for capture files which are no longer
	// being written to.
	CompletedCaptureFileExt = ".capture"
	// ComponentType is recorded in the metadata of every capture file.
	ComponentType = "spiblock"
	// MethodName is recorded in the metadata of every capture file.
	MethodName = "ReadBlock"
	// Blocks are opaque to spiblock, so they are exported as raw binary.
	blockFileExt = ".bin"
	// Non-exhaustive list of characters to strip from file paths, since not allowed
	// on certain file systems.
	filePathReservedChars = ":"
)

// CaptureFile is the data structure containing captured blocks. It is backed by a file on disk
// containing length delimited protobuf messages, where the first message is the
// DataCaptureMetadata for the file, and ensuing messages contain the captured data.
type CaptureFile struct {
	Metadata          *v1.DataCaptureMetadata
	path              string
	size              int64
	initialReadOffset int64

	lock       sync.Mutex
	file       *os.File
	readOffset int64
}

// NewCaptureFile creates a CaptureFile from a completed capture file.
func NewCaptureFile(f *os.File) (*CaptureFile, error) {
	if !IsDataCaptureFile(f) {
		return nil, errors.Errorf("%s is not a data capture file", f.Name())
	}
	finfo, err := f.Stat()
	if err != nil {
		return nil, err
	}

	md := &v1.DataCaptureMetadata{}
	initOffset, err := pbutil.ReadDelimited(f, md)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read DataCaptureMetadata from %s", f.Name())
	}
	if md.GetType() == v1.DataType_DATA_TYPE_UNSPECIFIED {
		return nil, errors.Errorf("file %s does not contain valid metadata", f.Name())
	}

	ret := CaptureFile{
		path:              f.Name(),
		file:              f,
		size:              finfo.Size(),
		Metadata:          md,
		initialReadOffset: int64(initOffset),
		readOffset:        int64(initOffset),
	}

	return &ret, nil
}

// ReadMetadata reads and returns the metadata in f.
func (f *CaptureFile) ReadMetadata() *v1.DataCaptureMetadata {
	return f.Metadata
}

// ReadNext returns the next SensorData reading.
func (f *CaptureFile) ReadNext() (*v1.SensorData, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, err := f.file.Seek(f.readOffset, io.SeekStart); err != nil {
		return nil, err
	}
	r := v1.SensorData{}
	read, err := pbutil.ReadDelimited(f.file, &r)
	if err != nil {
		return nil, err
	}
	f.readOffset += int64(read)

	return &r, nil
}

// Reset resets the read pointer of f.
func (f *CaptureFile) Reset() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.readOffset = f.initialReadOffset
}

// Size returns the size of the file.
func (f *CaptureFile) Size() int64 {
	return f.size
}

// GetPath returns the path of the underlying os.File.
func (f *CaptureFile) GetPath() string {
	return f.path
}

// Close closes the file.
func (f *CaptureFile) Close() error {
	return f.file.Close()
}

// IsDataCaptureFile returns whether or not f is a data capture file.
func IsDataCaptureFile(f *os.File) bool {
	return filepath.Ext(f.Name()) == CompletedCaptureFileExt
}

// BuildCaptureMetadata builds the metadata written at the head of a device's capture files.
func BuildCaptureMetadata(device string, tags []string) *v1.DataCaptureMetadata {
	return &v1.DataCaptureMetadata{
		ComponentType: ComponentType,
		ComponentName: device,
		MethodName:    MethodName,
		Type:          v1.DataType_DATA_TYPE_BINARY_SENSOR,
		FileExtension: blockFileExt,
		Tags:          tags,
	}
}

// FilePathWithReplacedReservedChars returns the filepath with substitutions
// for reserved characters.
func FilePathWithReplacedReservedChars(filepath string) string {
	return strings.ReplaceAll(filepath, filePathReservedChars, "_")
}

// Create a filename based on the current time.
func getFileTimestampName() string {
	// RFC3339Nano is a standard time format e.g. 2006-01-02T15:04:05Z07:00.
	return time.Now().Format(time.RFC3339Nano)
}

// captureWriter appends readings to an in progress capture file.
type captureWriter struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	size   int64
}

func newCaptureWriter(captureDir string, md *v1.DataCaptureMetadata) (*captureWriter, error) {
	// First create directories and the file in it.
	fileDir := filepath.Join(captureDir, md.GetComponentName())
	if err := os.MkdirAll(fileDir, 0o700); err != nil {
		return nil, err
	}
	fileName := FilePathWithReplacedReservedChars(getFileTimestampName()) + "_" + uuid.NewString()
	//nolint:gosec
	f, err := os.Create(filepath.Join(fileDir, fileName) + InProgressCaptureFileExt)
	if err != nil {
		return nil, err
	}

	// Then write first metadata message to the file.
	n, err := pbutil.WriteDelimited(f, md)
	if err != nil {
		return nil, multierr.Combine(err, f.Close(), os.Remove(f.Name()))
	}
	return &captureWriter{
		path:   f.Name(),
		file:   f,
		writer: bufio.NewWriter(f),
		size:   int64(n),
	}, nil
}

func (w *captureWriter) WriteNext(data *v1.SensorData) error {
	n, err := pbutil.WriteDelimited(w.writer, data)
	if err != nil {
		return err
	}
	w.size += int64(n)
	return nil
}

// finish flushes and closes the file and gives it its completed extension.
func (w *captureWriter) finish() (string, error) {
	if err := multierr.Combine(w.writer.Flush(), w.file.Close()); err != nil {
		return "", err
	}
	completed := strings.TrimSuffix(w.path, InProgressCaptureFileExt) + CompletedCaptureFileExt
	if err := os.Rename(w.path, completed); err != nil {
		return "", err
	}
	return completed, nil
}

// SensorDataFromCaptureFilePath returns all readings in the file at filePath.
func SensorDataFromCaptureFilePath(filePath string) ([]*v1.SensorData, error) {
	//nolint:gosec
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	dcFile, err := NewCaptureFile(f)
	if err != nil {
		return nil, err
	}

	return SensorDataFromCaptureFile(dcFile)
}

// SensorDataFromCaptureFile returns all readings in f.
func SensorDataFromCaptureFile(f *CaptureFile) ([]*v1.SensorData, error) {
	f.Reset()
	var ret []*v1.SensorData
	for {
		next, err := f.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return ret, errors.Wrapf(err, "%s ends with a truncated reading", f.GetPath())
			}
			return nil, err
		}
		ret = append(ret, next)
	}
	return ret, nil
}

func (w *captureWriter) String() string {
	return fmt.Sprintf("%s (%d bytes)", w.path, w.size)
}
