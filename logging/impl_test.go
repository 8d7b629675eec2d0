package logging

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))

	_, err = time.Parse(DefaultTimeFormatStr, actualParts[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	// Logger name is optional in the console encoding; the caller follows it.
	callerIdx := 2
	if len(expectedParts) > 2 && !strings.Contains(expectedParts[2], ".go:") {
		test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])
		callerIdx = 3
	}
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[callerIdx], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, _ := strings.Cut(expectedParts[callerIdx], ":")
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[callerIdx+1], test.ShouldEqual, expectedParts[callerIdx+1])
	if len(actualParts) == callerIdx+2 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[callerIdx+2]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[callerIdx+2]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := newImpl("", DEBUG, NewWriterAppender(notStdout))

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	logging/impl_test.go:67	impl Info log`)

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764Z	INFO	logging/impl_test.go:71	impl infof log`)

	logger.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	logging/impl_test.go:75	impl logw	{"key":"value"}`)

	logger.Warnw("BasicStruct", "implOneKey", "1val", "BasicStruct", BasicStruct{1, "alice"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	WARN	logging/impl_test.go:79	BasicStruct	{"BasicStruct":{"X":1},"implOneKey":"1val"}`)

	logger.Errorw("unpaired", "dangling")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129Z	ERROR	logging/impl_test.go:83	unpaired	{"dangling":"unpaired log key"}`)
}

func TestSubloggerNaming(t *testing.T) {
	notStdout := &bytes.Buffer{}
	parent := newImpl("rkmpp", DEBUG, NewWriterAppender(notStdout))

	sub := parent.Sublogger("h264_rkmpp_decoder")
	sub.Debug("configured")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	rkmpp.h264_rkmpp_decoder	logging/impl_test.go:94	configured`)

	// Sublogger levels are independent of the parent.
	sub.SetLevel(WARN)
	sub.Info("dropped")
	parent.Info("kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	rkmpp	logging/impl_test.go:101	kept`)
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debug("one")
	logger.Warnw("two", "frame", 3)
	logger.SetLevel(ERROR)
	logger.Warn("three")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("two").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("two").All()[0].ContextMap()["frame"], test.ShouldEqual, int64(3))
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.out)
	}

	_, err := LevelFromString("trace")
	test.That(t, err, test.ShouldNotBeNil)
}
