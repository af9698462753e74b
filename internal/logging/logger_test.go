package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("ERROR"))
	assert.Equal(t, logrus.FatalLevel, GetLevel("fatal"))
	assert.Equal(t, logrus.InfoLevel, GetLevel("Info"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("trace"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("something-else"))
}
