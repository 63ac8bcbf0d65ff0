// Package video decodes video files into frames with ffmpeg.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/kdimtricp/crackscan/internal/scanner"
)

var _ scanner.FrameSource = (*Source)(nil)

// Source streams decoded RGB frames from an ffmpeg child process. Frames are
// read one at a time; nothing beyond the current frame is buffered.
type Source struct {
	info  Info
	r     io.Reader
	frame []byte

	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
	stderr bytes.Buffer
}

// Open probes path and starts decoding it. The caller must Close the source.
func Open(path string, logger *zap.SugaredLogger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.Wrap(err, "ffmpeg not found in PATH")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "video file not accessible")
	}

	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	logger.Infow("opened video",
		"path", path,
		"width", info.Width,
		"height", info.Height,
		"rotation", info.Rotation,
		"fps", info.FrameRate,
		"duration", info.Duration,
	)

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	s := newRawSource(pr, *info)
	s.pr = pr
	s.cancel = cancel
	s.done = make(chan struct{})

	stream := ffmpeg.Input(path).
		Output("pipe:", outputArgs(*info)).
		WithOutput(pw).
		WithErrorOutput(&s.stderr)
	stream.Context = ctx

	go func() {
		defer close(s.done)
		err := stream.Run()
		switch {
		case ctx.Err() != nil:
			err = nil
		case err != nil:
			err = errors.Wrapf(err, "ffmpeg: %s", lastLine(s.stderr.String()))
		}
		s.runErr = err
		pw.CloseWithError(err)
	}()

	return s, nil
}

// outputArgs pins the decoded stream and frame size to what Probe reported so
// every raw frame is exactly Width*Height*3 bytes in the expected layout.
func outputArgs(info Info) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"map":     fmt.Sprintf("0:%d", info.Stream),
		"s":       fmt.Sprintf("%dx%d", info.Width, info.Height),
		"format":  "rawvideo",
		"pix_fmt": "rgb24",
	}
}

func newRawSource(r io.Reader, info Info) *Source {
	return &Source{
		info:  info,
		r:     r,
		frame: make([]byte, info.Width*info.Height*3),
	}
}

func (s *Source) Info() Info { return s.info }

func (s *Source) FrameRate() float64 { return s.info.FrameRate }

// Next returns the next frame or io.EOF after the last one. A truncated frame
// is reported as scanner.ErrInvalidFrame.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frame) == 0 {
		return nil, errors.Wrap(scanner.ErrInvalidFrame, "zero sized frame")
	}

	_, err := io.ReadFull(s.r, s.frame)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, errors.Wrap(scanner.ErrInvalidFrame, "truncated frame")
	case err != nil:
		return nil, errors.Wrap(err, "reading frame")
	}

	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	for i, j := 0, 0; i < len(s.frame); i, j = i+3, j+4 {
		img.Pix[j] = s.frame[i]
		img.Pix[j+1] = s.frame[i+1]
		img.Pix[j+2] = s.frame[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// Close stops the decoder and waits for it to exit. It returns the decoder
// error, if ffmpeg failed on its own.
func (s *Source) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.pr.Close()
	<-s.done
	return s.runErr
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
