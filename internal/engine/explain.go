package engine

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"vowpipe/internal/vwline"
)

// explainLine performs one synchronous request/response exchange in audit
// mode: one sanitized line in, a raw score line and an explanation line
// out. A model with a link function prints the linked score on a third
// line, which is consumed and discarded.
func explainLine(w io.Writer, r *bufio.Reader, line string, linkFunction bool) (float64, string, error) {
	if _, err := io.WriteString(w, vwline.Sanitize(line)+"\n"); err != nil {
		return 0, "", wrapError(ErrCodeProcessExit, err, "writing to engine stdin")
	}
	scoreLine, err := readLine(r)
	if err != nil {
		return 0, "", err
	}
	explanation, err := readLine(r)
	if err != nil {
		return 0, "", err
	}
	if linkFunction {
		if _, err := readLine(r); err != nil {
			return 0, "", err
		}
	}
	score, err := strconv.ParseFloat(scoreLine, 64)
	if err != nil {
		return 0, "", errorf(ErrCodeProtocol, "engine response %q is not a prediction", scoreLine)
	}
	return score, explanation, nil
}

func readLine(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if err != nil && !(err == io.EOF && s != "") {
		return "", wrapError(ErrCodeProcessExit, err, "reading from engine stdout")
	}
	return strings.TrimSpace(s), nil
}
