package formatter

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var logLevelSymbol []byte

func init() {
	logLevelSymbol = make([]byte, len(logrus.AllLevels)+1)
	for _, level := range logrus.AllLevels {
		logLevelSymbol[level] = strings.ToUpper(level.String()[:1])[0]
	}
}

// CompactText is a logrus formatter which prints laconic lines, like
// [12:34 W main.go:56] my message
type CompactText struct {
	TimestampFormat  string
	DisableTimestamp bool

	// FieldAllowList, if not nil, is the list of the only fields printed.
	FieldAllowList []string

	// FieldDenyList is the list of fields never printed.
	FieldDenyList []string
}

func contains(list []string, key string) bool {
	for _, item := range list {
		if item == key {
			return true
		}
	}
	return false
}

// Format implements logrus.Formatter.
func (f *CompactText) Format(entry *logrus.Entry) ([]byte, error) {
	var str, header strings.Builder
	if !f.DisableTimestamp {
		timestamp := time.RFC3339
		if f.TimestampFormat != "" {
			timestamp = f.TimestampFormat
		}
		header.WriteString(entry.Time.Format(timestamp))
		header.WriteByte(' ')
	}
	header.WriteByte(logLevelSymbol[entry.Level])
	if entry.Caller != nil {
		header.WriteString(fmt.Sprintf(" %s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line))
	}
	str.WriteString(fmt.Sprintf("[%s] %s",
		header.String(),
		entry.Message,
	))

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if f.FieldAllowList != nil && !contains(f.FieldAllowList, key) {
			continue
		}
		if contains(f.FieldDenyList, key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		str.WriteString(fmt.Sprintf("\t%s=%v", key, entry.Data[key]))
	}

	str.WriteByte('\n')
	return []byte(str.String()), nil
}
