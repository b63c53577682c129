package formatter

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestCompactText(t *testing.T) {
	entry := &logrus.Entry{
		Time: time.Date(2001, 02, 03, 04, 05, 06, 07, time.UTC),
		Data: logrus.Fields{
			"engine":      "clamav",
			"fingerprint": "abcdef",
		},
		Level:   logrus.WarnLevel,
		Message: "engine failed",
	}

	t.Run("all_fields", func(t *testing.T) {
		b, err := (&CompactText{}).Format(entry)
		require.NoError(t, err)
		require.Equal(t, "[2001-02-03T04:05:06Z W] engine failed\tengine=clamav\tfingerprint=abcdef\n", string(b))
	})

	t.Run("allow_list", func(t *testing.T) {
		b, err := (&CompactText{
			FieldAllowList: []string{"engine"},
		}).Format(entry)
		require.NoError(t, err)
		require.Equal(t, "[2001-02-03T04:05:06Z W] engine failed\tengine=clamav\n", string(b))
	})

	t.Run("deny_list_no_timestamp", func(t *testing.T) {
		b, err := (&CompactText{
			DisableTimestamp: true,
			FieldDenyList:    []string{"fingerprint"},
		}).Format(entry)
		require.NoError(t, err)
		require.Equal(t, "[W] engine failed\tengine=clamav\n", string(b))
	})

	t.Run("integer_field", func(t *testing.T) {
		b, err := (&CompactText{
			TimestampFormat: "15:04",
		}).Format(&logrus.Entry{
			Time:    time.Date(2001, 02, 03, 04, 05, 06, 07, time.UTC),
			Data:    logrus.Fields{"sampleID": 1},
			Level:   logrus.InfoLevel,
			Message: "msg",
		})
		require.NoError(t, err)
		require.Equal(t, "[04:05 I] msg\tsampleID=1\n", string(b))
	})
}
