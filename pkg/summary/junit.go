package summary

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"
)

// maxLogTail is the number of trailing log bytes attached to a failure.
const maxLogTail = 4096

// WriteJUnit writes s as a single JUnit test suite.
func WriteJUnit(w io.Writer, suiteName string, s RunSummary, startedAt time.Time) error {
	suite := junit.Testsuite{
		Name: suiteName,
	}

	suite.SetTimestamp(startedAt)

	var total time.Duration

	for _, r := range s.Results {
		total += r.Duration

		tc := junit.Testcase{
			Name:      r.Name,
			Classname: suiteName,
			Time:      formatSeconds(r.Duration),
		}

		if !r.Passed() {
			tc.Failure = &junit.Result{
				Message: fmt.Sprintf("exit code %d, log: %s", r.ExitCode, r.LogPath),
				Type:    "ExitCode",
				Data:    logTail(r.LogPath, maxLogTail),
			}
		}

		suite.AddTestcase(tc)
	}

	suite.Time = formatSeconds(total)

	var suites junit.Testsuites

	suites.AddSuite(suite)

	if err := suites.WriteXML(w); err != nil {
		return fmt.Errorf("writing junit xml: %w", err)
	}

	return nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// logTail returns up to n trailing bytes of the file at path.
func logTail(path string, n int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ""
	}

	offset := info.Size() - n
	if offset < 0 {
		offset = 0
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ""
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}

	return string(data)
}
