package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"voxroute/internal/domain"
)

// lineBuffer reassembles newline-delimited records from arbitrary reads.
type lineBuffer struct {
	buf []byte
}

// Feed appends p and returns every complete, non-empty, trimmed line.
func (b *lineBuffer) Feed(p []byte) [][]byte {
	b.buf = append(b.buf, p...)

	var lines [][]byte
	for {
		index := bytes.IndexByte(b.buf, '\n')
		if index < 0 {
			break
		}
		if line := bytes.TrimSpace(b.buf[:index]); len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
		b.buf = append(b.buf[:0], b.buf[index+1:]...)
	}
	return lines
}

type helperLine struct {
	Type           string  `json:"type"`
	Data           string  `json:"data"`
	PacketDuration float64 `json:"packetDuration"`
	SampleRate     float64 `json:"sampleRate"`
	Message        string  `json:"message"`
}

// decodeHelperLine turns one JSON line into a helper event. Failures come
// back as domain.HelperMalformedLine rather than an error.
func decodeHelperLine(line []byte) domain.HelperEvent {
	var raw helperLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return domain.HelperMalformedLine{Line: string(line), Err: err}
	}

	switch raw.Type {
	case "startListening":
		return domain.HelperStartListening{}
	case "stopListening":
		return domain.HelperStopListening{}
	case "heartbeat":
		return domain.HelperHeartbeat{}
	case "audioChunk":
		data, err := base64.StdEncoding.DecodeString(raw.Data)
		if err != nil {
			return domain.HelperMalformedLine{Line: string(line), Err: fmt.Errorf("invalid audio payload: %w", err)}
		}
		return domain.HelperAudio{Chunk: domain.AudioChunk{
			Data:           data,
			SampleRate:     int(raw.SampleRate),
			PacketDuration: raw.PacketDuration,
		}}
	case "error":
		return domain.HelperReportedError{Message: raw.Message}
	default:
		return domain.HelperMalformedLine{Line: string(line), Err: fmt.Errorf("unknown helper event type %q", raw.Type)}
	}
}

// stderrLog forwards helper diagnostics to the debug log line by line.
type stderrLog struct {
	log   zerolog.Logger
	lines lineBuffer
}

func (w *stderrLog) Write(p []byte) (int, error) {
	for _, line := range w.lines.Feed(p) {
		w.log.Debug().Str("stderr", string(line)).Msg("helper diagnostics")
	}
	return len(p), nil
}
