package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logtools/caddyingester/internal/ingester/metrics"
	"github.com/logtools/caddyingester/internal/ingester/model"
)

const handledRequestLine = `{"level":"info","ts":1646218190.25,"logger":"http.log.access.log0","msg":"handled request","user_id":"alice","duration":0.004929675,"size":10900,"status":200,"resp_headers":{"Server":["Caddy"],"Content-Type":["text/html; charset=utf-8"],"Vary":["Accept-Encoding"]},"request":{"remote_addr":"10.0.0.7:38974","proto":"HTTP/2.0","method":"GET","host":"example.com","uri":"/docs/","headers":{"User-Agent":["curl/7.82.0"],"Accept":["*/*"]}}}`

const minimalLine = `{"msg":"handled request","ts":1646218190.25,"duration":0.001,"size":0,"status":204,"resp_headers":{},"request":{"remote_addr":"127.0.0.1:9","proto":"HTTP/1.1","method":"HEAD","host":"example.com","uri":"/","headers":{}}}`

func testConverter(t *testing.T) *LineConverter {
	t.Helper()
	return NewLineConverter(metrics.Get())
}

func TestConvert_HandledRequestLine(t *testing.T) {
	entry, matched, err := testConverter(t).Convert([]byte(handledRequestLine))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, matched)
	assert.Equal(t, time.Unix(1646218190, 250000000).UTC(), entry.Ts)
	require.NotNil(t, entry.UserId)
	assert.Equal(t, "alice", *entry.UserId)
	assert.Equal(t, 0.004929675, entry.Duration)
	assert.Equal(t, int64(10900), entry.Size)
	assert.Equal(t, int32(200), entry.Status)
	assert.Equal(t, model.Headers{
		{Name: "Server", Values: []string{"Caddy"}},
		{Name: "Content-Type", Values: []string{"text/html; charset=utf-8"}},
		{Name: "Vary", Values: []string{"Accept-Encoding"}},
	}, entry.RespHeaders)
	assert.Equal(t, "10.0.0.7:38974", entry.Request.RemoteAddr)
	assert.Equal(t, "HTTP/2.0", entry.Request.Proto)
	assert.Equal(t, "GET", entry.Request.Method)
	assert.Equal(t, "example.com", entry.Request.Host)
	assert.Equal(t, "/docs/", entry.Request.Uri)
	assert.Equal(t, model.Headers{
		{Name: "User-Agent", Values: []string{"curl/7.82.0"}},
		{Name: "Accept", Values: []string{"*/*"}},
	}, entry.Request.Headers)
}

func TestConvert_MalformedLine(t *testing.T) {
	entry, matched, err := testConverter(t).Convert([]byte(`{"msg":"handled request",`))
	assert.Error(t, err)
	assert.False(t, matched)
	assert.Nil(t, entry)
}

func TestConvert_NonObjectJsonIsSkippedSilently(t *testing.T) {
	for _, line := range []string{`[1,2,3]`, `42`, `"handled request"`, `null`, `true`} {
		entry, matched, err := testConverter(t).Convert([]byte(line))
		assert.NoError(t, err, line)
		assert.False(t, matched, line)
		assert.Nil(t, entry, line)
	}
}

func TestConvert_OtherMsgIsSkippedSilently(t *testing.T) {
	lines := []string{
		`{"level":"info","ts":1646218190.25,"msg":"shutting down apps, then terminating"}`,
		`{"level":"info","ts":1646218190.25,"msg":"serving initial configuration"}`,
		`{"ts":1646218190.25}`,
		`{"msg":5}`,
	}
	for _, line := range lines {
		entry, matched, err := testConverter(t).Convert([]byte(line))
		assert.NoError(t, err, line)
		assert.False(t, matched, line)
		assert.Nil(t, entry, line)
	}
}

func TestConvert_MissingFields(t *testing.T) {
	entry, matched, err := testConverter(t).Convert([]byte(`{"msg":"handled request","ts":1646218190.25,"size":0,"status":200}`))
	require.Error(t, err)
	assert.True(t, matched)
	assert.Nil(t, entry)
	assert.Contains(t, err.Error(), "duration")
	assert.Contains(t, err.Error(), "resp_headers")
	assert.Contains(t, err.Error(), "request")
}

func TestConvert_MissingRequestFields(t *testing.T) {
	line := `{"msg":"handled request","ts":1646218190.25,"duration":0.001,"size":0,"status":204,"resp_headers":{},"request":{"proto":"HTTP/1.1"}}`
	entry, matched, err := testConverter(t).Convert([]byte(line))
	require.Error(t, err)
	assert.True(t, matched)
	assert.Nil(t, entry)
	assert.Contains(t, err.Error(), "request.remote_addr")
	assert.Contains(t, err.Error(), "request.headers")
	assert.NotContains(t, err.Error(), "request.proto")
}

func TestConvert_WrongFieldShape(t *testing.T) {
	lines := []string{
		// status as a string
		`{"msg":"handled request","ts":1646218190.25,"duration":0.001,"size":0,"status":"204","resp_headers":{},"request":{"remote_addr":"127.0.0.1:9","proto":"HTTP/1.1","method":"HEAD","host":"example.com","uri":"/","headers":{}}}`,
		// negative size
		`{"msg":"handled request","ts":1646218190.25,"duration":0.001,"size":-1,"status":204,"resp_headers":{},"request":{"remote_addr":"127.0.0.1:9","proto":"HTTP/1.1","method":"HEAD","host":"example.com","uri":"/","headers":{}}}`,
		// header values not arrays
		`{"msg":"handled request","ts":1646218190.25,"duration":0.001,"size":0,"status":204,"resp_headers":{"Server":"Caddy"},"request":{"remote_addr":"127.0.0.1:9","proto":"HTTP/1.1","method":"HEAD","host":"example.com","uri":"/","headers":{}}}`,
	}
	for _, line := range lines {
		entry, matched, err := testConverter(t).Convert([]byte(line))
		assert.Error(t, err, line)
		assert.True(t, matched, line)
		assert.Nil(t, entry, line)
	}
}

func TestConvert_UserIdIsOptional(t *testing.T) {
	entry, _, err := testConverter(t).Convert([]byte(minimalLine))
	require.NoError(t, err)
	assert.Nil(t, entry.UserId)

	withNull := `{"msg":"handled request","ts":1646218190.25,"user_id":null,"duration":0.001,"size":0,"status":204,"resp_headers":{},"request":{"remote_addr":"127.0.0.1:9","proto":"HTTP/1.1","method":"HEAD","host":"example.com","uri":"/","headers":{}}}`
	entry, _, err = testConverter(t).Convert([]byte(withNull))
	require.NoError(t, err)
	assert.Nil(t, entry.UserId)

	withEmpty := `{"msg":"handled request","ts":1646218190.25,"user_id":"","duration":0.001,"size":0,"status":204,"resp_headers":{},"request":{"remote_addr":"127.0.0.1:9","proto":"HTTP/1.1","method":"HEAD","host":"example.com","uri":"/","headers":{}}}`
	entry, _, err = testConverter(t).Convert([]byte(withEmpty))
	require.NoError(t, err)
	require.NotNil(t, entry.UserId)
	assert.Equal(t, "", *entry.UserId)
}

func TestEpochToTime_KeepsFractionalPart(t *testing.T) {
	assert.Equal(t, time.Unix(1646218190, 250000000).UTC(), epochToTime(1646218190.25))
	assert.Equal(t, time.Unix(1646218190, 0).UTC(), epochToTime(1646218190))
}
