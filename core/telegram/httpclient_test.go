package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	errs  []error
	calls int
	body  []string
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.body = append(s.body, string(b))
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func TestRetryTransportRetriesDialErrors(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}
	base := &scriptedTransport{errs: []error{dial, dial}}
	rt := &retryTransport{base: base, maxRetries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("chat_id=1"))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, 3, base.calls)
	assert.Equal(t, []string{"chat_id=1", "chat_id=1", "chat_id=1"}, base.body)
}

func TestRetryTransportDoesNotReplayDeliveredRequests(t *testing.T) {
	readErr := &net.OpError{Op: "read", Err: errors.New("reset")}
	base := &scriptedTransport{errs: []error{readErr}}
	rt := &retryTransport{base: base, maxRetries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.ErrorIs(t, err, readErr)
	assert.Equal(t, 1, base.calls)
}

func TestBuildHTTPClientLeavesRoomForLongPoll(t *testing.T) {
	c := BuildHTTPClient(10 * time.Second)
	assert.Greater(t, c.Timeout, 10*time.Second)
	rt, ok := c.Transport.(*retryTransport)
	require.True(t, ok)
	tr, ok := rt.base.(*http.Transport)
	require.True(t, ok)
	assert.Greater(t, tr.ResponseHeaderTimeout, 10*time.Second)
}
