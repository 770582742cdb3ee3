// Package input reads the raw message from the calling process and keeps
// an optional verbatim copy on disk.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// rawFileTimeLayout is the timestamp embedded in raw copy file names.
const rawFileTimeLayout = "20060102_150405"

// LineEnding is the platform line terminator used to join input lines.
var LineEnding = lineEnding(runtime.GOOS)

func lineEnding(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Read reads r line by line until EOF and joins the lines with LineEnding.
// Every line, including an unterminated last line, is followed by
// LineEnding. An empty stream yields an empty slice.
func Read(r io.Reader) ([]byte, error) {
	return readLines(r, LineEnding)
}

func readLines(r io.Reader, eol string) ([]byte, error) {
	br := bufio.NewReader(r)
	var buf strings.Builder

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			buf.WriteString(line)
			buf.WriteString(eol)
		}
		if errors.Is(err, io.EOF) {
			return []byte(buf.String()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
	}
}

// SaveRaw echoes raw to echo and writes it to a new file in dir named
// RawInput-<timestamp>-<random>.txt. It returns the file path.
func SaveRaw(dir string, raw []byte, now time.Time, echo io.Writer) (string, error) {
	if echo != nil {
		if _, err := echo.Write(raw); err != nil {
			return "", fmt.Errorf("echo raw message: %w", err)
		}
	}

	name := fmt.Sprintf("RawInput-%s-%s.txt", now.Format(rawFileTimeLayout), uuid.New().String())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create raw copy: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return "", fmt.Errorf("write raw copy: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close raw copy: %w", err)
	}

	return path, nil
}
