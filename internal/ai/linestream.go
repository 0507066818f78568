package ai

import (
	"bufio"
	"io"
)

// lineDecoder parses one line of a streaming body. done reports an explicit end marker.
type lineDecoder func(line []byte) (delta string, done bool, err error)

// lineStream adapts a line-oriented HTTP body (NDJSON or SSE) to Stream.
type lineStream struct {
	body   io.ReadCloser
	sc     *bufio.Scanner
	decode lineDecoder
	done   bool
}

func newLineStream(body io.ReadCloser, decode lineDecoder) *lineStream {
	sc := bufio.NewScanner(body)
	// long JSON lines
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2*1024*1024)
	return &lineStream{body: body, sc: sc, decode: decode}
}

func (s *lineStream) Recv() (string, error) {
	for !s.done {
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return "", err
			}
			s.done = true
			break
		}
		delta, done, err := s.decode(s.sc.Bytes())
		if err != nil {
			return "", err
		}
		if done {
			s.done = true
		}
		if delta != "" {
			return delta, nil
		}
	}
	return "", io.EOF
}

func (s *lineStream) Close() error {
	return s.body.Close()
}
