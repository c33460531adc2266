package mpesa

import (
	"encoding/base64"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const sandboxPassKey = "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "20240102030405", ts)

	assert.Regexp(t, regexp.MustCompile(`^\d{14}$`), Timestamp(time.Now()))
}

func TestPassword(t *testing.T) {
	pwd := Password("174379", sandboxPassKey, "20160216165627")
	assert.Equal(t, "MTc0Mzc5YmZiMjc5ZjlhYTliZGJjZjE1OGU5N2RkNzFhNDY3Y2QyZTBjODkzMDU5YjEwZjc4ZTZiNzJhZGExZWQyYzkxOTIwMTYwMjE2MTY1NjI3", pwd)

	decoded, err := base64.StdEncoding.DecodeString(pwd)
	assert.NoError(t, err)
	assert.Equal(t, "174379"+sandboxPassKey+"20160216165627", string(decoded))
}

func TestPasswordDependsOnEveryInput(t *testing.T) {
	base := Password("174379", sandboxPassKey, "20160216165627")
	assert.NotEqual(t, base, Password("174379", sandboxPassKey, "20160216165628"))
	assert.NotEqual(t, base, Password("174379", "other", "20160216165627"))
	assert.NotEqual(t, base, Password("600000", sandboxPassKey, "20160216165627"))
}
