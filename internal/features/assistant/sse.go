package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// sseDone: маркер конца потока.
const sseDone = "[DONE]"

type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// SSEReader читает поток вида "data: {...}\n\n" и отдаёт текстовые дельты.
//
// Строка может прийти кусками: хвост без \n ждёт следующего чтения.
// Последняя строка с недописанным JSON тоже откладывается до следующего чтения.
// Битые строки в середине и на конце потока пропускаются.
type SSEReader struct {
	r       io.Reader
	buf     []byte
	pending []string
	done    bool
	eof     bool
}

// NewSSEReader оборачивает тело ответа.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{r: r}
}

// Next возвращает следующую непустую дельту. io.EOF: поток закончился или пришёл [DONE].
func (s *SSEReader) Next() (string, error) {
	for {
		if len(s.pending) > 0 {
			d := s.pending[0]
			s.pending = s.pending[1:]
			return d, nil
		}
		if s.done {
			return "", io.EOF
		}
		if err := s.parse(); err != nil {
			return "", err
		}
		if len(s.pending) > 0 || s.done {
			continue
		}
		if s.eof {
			s.done = true
			continue
		}
		if err := s.fill(); err != nil {
			return "", err
		}
	}
}

func (s *SSEReader) fill() error {
	chunk := make([]byte, 4096)
	n, err := s.r.Read(chunk)
	s.buf = append(s.buf, chunk[:n]...)
	if errors.Is(err, io.EOF) {
		s.eof = true
		return nil
	}
	return err
}

// parse разбирает все полные строки буфера.
func (s *SSEReader) parse() error {
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			if !s.eof || len(s.buf) == 0 {
				return nil
			}
			// последняя строка без \n
			i = len(s.buf)
			s.buf = append(s.buf, '\n')
		}
		line := bytes.TrimSuffix(s.buf[:i], []byte("\r"))

		if len(line) == 0 || line[0] == ':' || !bytes.HasPrefix(line, []byte("data:")) {
			s.buf = s.buf[i+1:]
			continue
		}
		payload := bytes.TrimSpace(line[len("data:"):])
		if string(payload) == sseDone {
			s.buf = nil
			s.done = true
			return nil
		}

		var chunk deltaChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			if !s.eof && bytes.IndexByte(s.buf[i+1:], '\n') < 0 {
				// последняя строка буфера: JSON мог не дописаться, ждём следующего чтения
				return nil
			}
			s.buf = s.buf[i+1:]
			continue
		}
		s.buf = s.buf[i+1:]
		for _, c := range chunk.Choices {
			if c.Delta.Content != "" {
				s.pending = append(s.pending, c.Delta.Content)
			}
		}
	}
}
